package model

import (
	"errors"
	"fmt"
	"math"
)

// EmbeddingDimension is the fixed size of every stored embedding.
const EmbeddingDimension = 384

// Vector is a dense float32 embedding.
type Vector []float32

// Validate ensures the vector has the expected dimension and finite values.
func (v Vector) Validate() error {
	if len(v) != EmbeddingDimension {
		return fmt.Errorf("embedding has dimension %d, want %d", len(v), EmbeddingDimension)
	}
	nonZero := false
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("embedding value %d is not finite", i)
		}
		if f != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return errors.New("embedding is the zero vector")
	}
	return nil
}

// Norm returns the Euclidean length of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of the vector. A zero vector is
// returned unchanged.
func (v Vector) Normalized() Vector {
	n := v.Norm()
	out := make(Vector, len(v))
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero
// or the lengths differ.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
