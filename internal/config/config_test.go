package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/pattern"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := load(t, `
database:
  path: ~/books/coa.db
embedding:
  provider: tei
  base_url: http://localhost:8081
  cache_ttl: 30m
retrieval:
  top_k: 8
classification:
  keywords:
    - keyword: aws
      account_code: "5330"
learning:
  low_confidence_threshold: 0.6
server:
  port: 9000
`)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/tester", "books/coa.db"), cfg.Database.Path)
	assert.Equal(t, "tei", cfg.Embedding.Provider)
	assert.Equal(t, 30*time.Minute, cfg.Embedding.CacheTTL)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	svc := cfg.Service()
	assert.Equal(t, 8, svc.SimilarTopK)
	assert.Equal(t, 8, svc.Engine.TopK)
	assert.InDelta(t, 0.6, svc.Selector.Threshold, 1e-9)
	require.Len(t, svc.Keywords, 1)
	assert.Equal(t, "5330", svc.Keywords[0].AccountCode)

	provider := cfg.Provider()
	assert.Equal(t, "http://localhost:8081", provider.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Generator().CacheTTL)
}

func TestService_DefaultKeywords(t *testing.T) {
	svc := Default().Service()
	assert.Equal(t, pattern.DefaultKeywords(), svc.Keywords)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown provider", "embedding:\n  provider: magic\n", common.ErrInvalidConfig},
		{"tei without url", "embedding:\n  provider: tei\n", common.ErrMissingConfig},
		{"empty database path", "database:\n  path: \"\"\n", common.ErrMissingConfig},
		{"top_k zero", "retrieval:\n  top_k: 0\n", common.ErrInvalidConfig},
		{"similarity above one", "retrieval:\n  min_similarity: 1.5\n", common.ErrInvalidConfig},
		{"threshold above one", "learning:\n  low_confidence_threshold: 2\n", common.ErrInvalidConfig},
		{"partial above exact", "classification:\n  partial_similarity: 0.99\n", common.ErrInvalidConfig},
		{"window too long", "learning:\n  window_days: 1000\n", common.ErrInvalidConfig},
		{"empty keyword", "classification:\n  keywords:\n    - account_code: \"5310\"\n", common.ErrInvalidConfig},
		{"bad port", "server:\n  port: 70000\n", common.ErrInvalidConfig},
		{"bad log format", "logging:\n  format: xml\n", common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.yaml)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("COA_DATA", "/srv/coa")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", "/home/tester"},
		{"~/data/coa.db", "/home/tester/data/coa.db"},
		{"$COA_DATA/coa.db", "/srv/coa/coa.db"},
		{"/abs/path", "/abs/path"},
		{"~user/path", "~user/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestEnsureParent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "coa.db")

	require.NoError(t, EnsureParent(path))
	assert.DirExists(t, filepath.Join(dir, "nested"))
	require.NoError(t, EnsureParent(":memory:"))
}
