// Package vector provides the fixed-dimension vector primitives shared by
// ingestion and recommendation.
package vector

import (
	"fmt"
	"math"

	"github.com/hubenschmidt/go-movienight/core"
)

// Vector is a dense embedding. All vectors in one deployment share the
// configured dimension.
type Vector []float64

func (v Vector) Dim() int { return len(v) }

// Clone returns a copy that does not alias v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, &core.DimensionError{Want: len(a), Got: len(b)}
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction. A
// zero-magnitude input has no direction and scores 0.
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, &core.DimensionError{Want: len(a), Got: len(b)}
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, core.ErrNonFinite
	}
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// CheckFinite returns core.ErrNonFinite if any element is NaN or ±Inf.
func CheckFinite(v Vector) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w at index %d", core.ErrNonFinite, i)
		}
	}
	return nil
}

// Average returns the elementwise mean of vs.
func Average(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, core.ErrEmptyInput
	}

	dim := len(vs[0])
	sum := make(Vector, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, &core.DimensionError{Want: dim, Got: len(v)}
		}
		for i, x := range v {
			sum[i] += x
		}
	}

	n := float64(len(vs))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

// Normalize normalizes a vector to unit length.
func Normalize(v Vector) Vector {
	norm := Magnitude(v)
	if norm == 0 {
		return v
	}

	result := make(Vector, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}
