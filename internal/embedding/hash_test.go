package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/model"
)

func TestHashProvider_Properties(t *testing.T) {
	p := NewHashProvider()
	ctx := context.Background()

	vecs, err := p.Embed(ctx, []string{
		"description: office supplies staples | direction: outflow",
		"description: office supplies staples | direction: outflow",
		"description: office supplies depot | direction: outflow",
		"description: monthly payroll run | direction: inflow",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	for _, v := range vecs {
		require.NoError(t, v.Validate())
		assert.InDelta(t, 1.0, v.Norm(), 1e-5)
	}

	assert.Equal(t, vecs[0], vecs[1])
	near := model.Cosine(vecs[0], vecs[2])
	far := model.Cosine(vecs[0], vecs[3])
	assert.Greater(t, near, far)
	assert.Less(t, near, 0.95)
}

func TestHashProvider_EmptyInput(t *testing.T) {
	_, err := NewHashProvider().Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, "hash-384", p.Name())

	_, err = NewProvider(ProviderConfig{Provider: "tei"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(ProviderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
