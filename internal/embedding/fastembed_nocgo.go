//go:build !cgo

package embedding

import (
	"context"
	"errors"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires CGO).
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the tei or hash provider instead)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is a stub for non-CGO builds.
type FastEmbedProvider struct{}

// NewFastEmbedProvider returns an error when CGO is not available.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Name implements Provider.
func (p *FastEmbedProvider) Name() string {
	return "fastembed"
}

// Dimension implements Provider.
func (p *FastEmbedProvider) Dimension() int {
	return model.EmbeddingDimension
}

// Embed returns an error when CGO is not available.
func (p *FastEmbedProvider) Embed(_ context.Context, _ []string) ([]model.Vector, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Close implements Provider.
func (p *FastEmbedProvider) Close() error {
	return nil
}
