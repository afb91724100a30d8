package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_Validate(t *testing.T) {
	v := make(Vector, EmbeddingDimension)
	v[0] = 1
	require.NoError(t, v.Validate())

	assert.Error(t, Vector{1, 2, 3}.Validate())
	assert.Error(t, make(Vector, EmbeddingDimension).Validate())

	v[5] = float32(math.NaN())
	assert.Error(t, v.Validate())
}

func TestVector_Normalized(t *testing.T) {
	v := Vector{3, 4}
	n := v.Normalized()
	assert.InDelta(t, 1.0, n.Norm(), 1e-6)
	assert.InDelta(t, 0.6, float64(n[0]), 1e-6)

	zero := Vector{0, 0}
	assert.Equal(t, zero, zero.Normalized())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine(Vector{1, 2}, Vector{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine(Vector{1, 0}, Vector{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine(Vector{1, 0}, Vector{-1, 0}), 1e-9)
	assert.Zero(t, Cosine(Vector{1}, Vector{1, 2}))
	assert.Zero(t, Cosine(Vector{0, 0}, Vector{1, 2}))
}

func TestDirectionOf(t *testing.T) {
	tx := Transaction{}
	assert.Equal(t, DirectionNone, tx.Direction())
}
