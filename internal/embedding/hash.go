package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// HashProvider is a deterministic, dependency-free embedder using signed
// feature hashing over word tokens and character trigrams. Identical texts
// map to identical vectors and texts sharing words or fragments land close
// together, which is enough for offline use and tests.
type HashProvider struct {
	dimension int
}

// NewHashProvider returns a HashProvider of model.EmbeddingDimension.
func NewHashProvider() *HashProvider {
	return &HashProvider{dimension: model.EmbeddingDimension}
}

// Name implements Provider.
func (p *HashProvider) Name() string {
	return fmt.Sprintf("hash-%d", p.dimension)
}

// Dimension implements Provider.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close implements Provider.
func (p *HashProvider) Close() error {
	return nil
}

// Embed implements Provider.
func (p *HashProvider) Embed(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Vector, len(texts))
	for i, text := range texts {
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *HashProvider) embedOne(text string) model.Vector {
	v := make(model.Vector, p.dimension)
	for _, field := range strings.Split(text, "|") {
		label, value, ok := strings.Cut(field, ":")
		if !ok {
			value = label
			label = ""
		}
		label = strings.TrimSpace(label)
		for _, tok := range strings.Fields(value) {
			p.add(v, label+"/w/"+tok, 1.0)
			padded := "^" + tok + "$"
			runes := []rune(padded)
			for i := 0; i+3 <= len(runes); i++ {
				p.add(v, label+"/t/"+string(runes[i:i+3]), 0.5)
			}
		}
	}
	if v.Norm() == 0 {
		p.add(v, "\x00empty", 1.0)
	}
	return v.Normalized()
}

func (p *HashProvider) add(v model.Vector, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
