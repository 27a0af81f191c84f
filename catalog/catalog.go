package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/vector"
)

// ValidateBatch rejects records that must never be persisted: missing
// title or description, empty or non-finite embedding, or an embedding
// whose length differs from dim (when dim > 0) or from the rest of the
// batch.
func ValidateBatch(records []Record, dim int) error {
	want := dim
	for i, r := range records {
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Description) == "" {
			return core.NewOpError("validate", fmt.Sprintf("record %d", i), core.ErrInvalidRecord)
		}
		if len(r.Embedding) == 0 {
			return core.NewOpError("validate", r.Title, fmt.Errorf("%w: missing embedding", core.ErrInvalidRecord))
		}
		if want == 0 {
			want = len(r.Embedding)
		}
		if len(r.Embedding) != want {
			return core.NewOpError("validate", r.Title, &core.DimensionError{Want: want, Got: len(r.Embedding)})
		}
		if err := vector.CheckFinite(r.Embedding); err != nil {
			return core.NewOpError("validate", r.Title, fmt.Errorf("%w: %w", core.ErrInvalidRecord, err))
		}
	}
	return nil
}

// Replace swaps the stored catalog for records. Validation runs before
// anything is cleared, and an empty batch never clears the store.
func Replace(ctx context.Context, s Store, records []Record, dim int) error {
	if len(records) == 0 {
		return fmt.Errorf("replace catalog: %w", core.ErrEmptyInput)
	}
	if err := ValidateBatch(records, dim); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	if r, ok := s.(Replacer); ok {
		if err := r.Replace(ctx, records); err != nil {
			return fmt.Errorf("replace catalog: %w", err)
		}
		return nil
	}

	if err := s.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	if err := s.BulkInsert(ctx, records); err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func Count(ctx context.Context, s Store) (int, error) {
	if c, ok := s.(Counter); ok {
		return c.Count(ctx)
	}
	all, err := s.SelectAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
