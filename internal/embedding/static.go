package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// StaticProvider serves scripted vectors and can be switched into failure.
// Unscripted texts fall back to hashing.
type StaticProvider struct {
	vectors  map[string]model.Vector
	fallback *HashProvider
	calls    atomic.Int64
	failing  atomic.Bool
	mu       sync.RWMutex
}

// NewStaticProvider returns a StaticProvider with no scripted vectors.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		vectors:  make(map[string]model.Vector),
		fallback: NewHashProvider(),
	}
}

// Script makes text embed to vec.
func (p *StaticProvider) Script(text string, vec model.Vector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vectors[text] = vec
}

// SetFailing toggles backend failure.
func (p *StaticProvider) SetFailing(failing bool) {
	p.failing.Store(failing)
}

// Calls returns how many Embed calls reached the provider.
func (p *StaticProvider) Calls() int {
	return int(p.calls.Load())
}

// Name implements Provider.
func (p *StaticProvider) Name() string {
	return "static"
}

// Dimension implements Provider.
func (p *StaticProvider) Dimension() int {
	return model.EmbeddingDimension
}

// Close implements Provider.
func (p *StaticProvider) Close() error {
	return nil
}

// Embed implements Provider.
func (p *StaticProvider) Embed(ctx context.Context, texts []string) ([]model.Vector, error) {
	p.calls.Add(1)
	if p.failing.Load() {
		return nil, fmt.Errorf("%w: backend unreachable", ErrEmbeddingFailed)
	}

	out, err := p.fallback.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, text := range texts {
		if vec, ok := p.vectors[text]; ok {
			out[i] = vec
		}
	}
	return out, nil
}
