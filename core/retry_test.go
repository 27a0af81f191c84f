package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		Multiplier:     2,
		MaxDelay:       4 * time.Millisecond,
		AttemptTimeout: 50 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Errorf("got v=%d calls=%d, want 42 and 3", v, calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_NonRetryableFailsFast(t *testing.T) {
	p := fastPolicy()
	permanent := errors.New("bad request")
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestRetry_AttemptTimeoutIsRetried(t *testing.T) {
	p := fastPolicy()
	p.AttemptTimeout = 5 * time.Millisecond

	calls := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_OnRetryObservesBackoff(t *testing.T) {
	p := fastPolicy()
	var waits []time.Duration
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	_ = Do(context.Background(), p, func(ctx context.Context) error {
		return errors.New("fail")
	})
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(waits))
	}
	if waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("unexpected waits %v", waits)
	}
}

func TestRetry_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no attempts, got %d", calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrNoPreferences, KindBadInput},
		{ErrEmptyCatalog, KindNotFound},
		{NewOpError("embed", "member 1", ErrEmbeddingFailed), KindTransient},
		{&DimensionError{Want: 3, Got: 2}, KindInternal},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDimensionErrorIs(t *testing.T) {
	var err error = &DimensionError{Want: 384, Got: 768}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("DimensionError should match ErrDimensionMismatch")
	}
	if err := DefaultModelConfig("m").CheckDimension(10); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected mismatch, got %v", err)
	}
}
