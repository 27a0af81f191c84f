package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Format converts a vector to pgvector text form: "[0.1,0.2,0.3]".
func Format(v Vector) string {
	if len(v) == 0 {
		return "[]"
	}

	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// Parse reads pgvector text form back into a vector.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("parse vector: missing brackets in %q", truncate(s))
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return Vector{}, nil
	}

	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// DecodeJSON accepts an embedding that was stored either as a JSON array
// or as a JSON string holding the text form. Both are written by
// different clients of the same table.
func DecodeJSON(raw []byte) (Vector, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode embedding string: %w", err)
		}
		return Parse(s)
	}

	var v Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode embedding array: %w", err)
	}
	return v, nil
}

// MarshalBinary encodes v as little-endian float64s.
func (v Vector) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf, nil
}

// UnmarshalBinary decodes the MarshalBinary form.
func (v *Vector) UnmarshalBinary(data []byte) error {
	if len(data)%8 != 0 {
		return fmt.Errorf("decode vector: %d bytes is not a multiple of 8", len(data))
	}
	out := make(Vector, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	*v = out
	return nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
