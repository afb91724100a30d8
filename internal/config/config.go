package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/engine"
	"github.com/Veraticus/coa-classifier/internal/feedback"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/pattern"
)

// Config is the complete application configuration.
type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Learning       LearningConfig       `mapstructure:"learning"`
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	CacheDir          string        `mapstructure:"cache_dir"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BatchWorkers      int           `mapstructure:"batch_workers"`
	BatchChunkSize    int           `mapstructure:"batch_chunk_size"`
}

// RetrievalConfig tunes similarity search and the vector index.
type RetrievalConfig struct {
	IndexPath     string  `mapstructure:"index_path"`
	Compress      bool    `mapstructure:"compress"`
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity float64 `mapstructure:"min_similarity"`
}

// ClassificationConfig tunes the suggestion engine.
type ClassificationConfig struct {
	Keywords           []model.KeywordRule `mapstructure:"keywords"`
	DefaultExpenseCode string              `mapstructure:"default_expense_code"`
	DefaultRevenueCode string              `mapstructure:"default_revenue_code"`
	ExactSimilarity    float64             `mapstructure:"exact_similarity"`
	PartialSimilarity  float64             `mapstructure:"partial_similarity"`
	MaxCandidates      int                 `mapstructure:"max_candidates"`
}

// LearningConfig tunes the review queue and the retraining advisor.
type LearningConfig struct {
	LowConfidenceThreshold  float64 `mapstructure:"low_confidence_threshold"`
	HighPriorityBelow       float64 `mapstructure:"high_priority_below"`
	WindowDays              int     `mapstructure:"window_days"`
	MinSamples              int     `mapstructure:"min_samples"`
	CorrectionRate          float64 `mapstructure:"correction_rate"`
	CorrectionsSinceRetrain int     `mapstructure:"corrections_since_retrain"`
	MinAccuracy             float64 `mapstructure:"min_accuracy"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	gen := embedding.DefaultGeneratorConfig()
	batch := embedding.DefaultBatchOptions()
	eng := engine.DefaultConfig()
	sel := feedback.DefaultSelectorConfig()
	adv := feedback.DefaultAdvisorConfig()
	svc := classifier.DefaultConfig()

	return &Config{
		Database: DatabaseConfig{Path: "~/.local/share/coa/coa.db"},
		Embedding: EmbeddingConfig{
			Provider:          "fastembed",
			Model:             "BAAI/bge-small-en-v1.5",
			CacheDir:          "~/.cache/coa/models",
			CacheTTL:          gen.CacheTTL,
			Timeout:           gen.Timeout,
			RequestsPerSecond: gen.RequestsPerSecond,
			Burst:             gen.Burst,
			BatchWorkers:      batch.Workers,
			BatchChunkSize:    batch.ChunkSize,
		},
		Retrieval: RetrievalConfig{
			IndexPath:     "~/.local/share/coa/index",
			Compress:      true,
			TopK:          svc.SimilarTopK,
			MinSimilarity: svc.MinSimilarity,
		},
		Classification: ClassificationConfig{
			DefaultExpenseCode: eng.DefaultExpenseCode,
			DefaultRevenueCode: eng.DefaultRevenueCode,
			ExactSimilarity:    eng.ExactSimilarity,
			PartialSimilarity:  eng.PartialSimilarity,
			MaxCandidates:      eng.MaxCandidates,
		},
		Learning: LearningConfig{
			LowConfidenceThreshold:  sel.Threshold,
			HighPriorityBelow:       sel.HighPriorityBelow,
			WindowDays:              adv.WindowDays,
			MinSamples:              adv.MinSamples,
			CorrectionRate:          adv.CorrectionRate,
			CorrectionsSinceRetrain: adv.CorrectionsSinceRetrain,
			MinAccuracy:             adv.MinAccuracy,
		},
		Server:  ServerConfig{Host: "localhost", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load unmarshals v over the defaults, expands paths and validates.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Embedding.CacheDir = ExpandPath(cfg.Embedding.CacheDir)
	cfg.Retrieval.IndexPath = ExpandPath(cfg.Retrieval.IndexPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", common.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	switch c.Embedding.Provider {
	case "hash", "fastembed":
	case "tei":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("%w: embedding.base_url is required for the tei provider", common.ErrMissingConfig)
		}
	default:
		return invalid("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchWorkers <= 0 || c.Embedding.BatchChunkSize <= 0 {
		return invalid("embedding batch workers and chunk size must be positive")
	}
	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive")
	}
	if !unit(c.Retrieval.MinSimilarity) {
		return invalid("retrieval.min_similarity must be between 0 and 1")
	}
	if !unit(c.Learning.LowConfidenceThreshold) || !unit(c.Learning.HighPriorityBelow) {
		return invalid("learning thresholds must be between 0 and 1")
	}
	for _, rule := range c.Classification.Keywords {
		if rule.Keyword == "" || rule.AccountCode == "" {
			return invalid("keyword rules need both keyword and account_code")
		}
	}
	if err := c.engine().Validate(); err != nil {
		return invalid("%v", err)
	}
	if err := c.advisor().Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json")
	}
	return nil
}

func unit(f float64) bool {
	return f >= 0 && f <= 1
}

func (c *Config) engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.DefaultExpenseCode = c.Classification.DefaultExpenseCode
	cfg.DefaultRevenueCode = c.Classification.DefaultRevenueCode
	cfg.ExactSimilarity = c.Classification.ExactSimilarity
	cfg.PartialSimilarity = c.Classification.PartialSimilarity
	cfg.MaxCandidates = c.Classification.MaxCandidates
	cfg.TopK = c.Retrieval.TopK
	return cfg
}

func (c *Config) advisor() feedback.AdvisorConfig {
	return feedback.AdvisorConfig{
		WindowDays:              c.Learning.WindowDays,
		MinSamples:              c.Learning.MinSamples,
		CorrectionRate:          c.Learning.CorrectionRate,
		CorrectionsSinceRetrain: c.Learning.CorrectionsSinceRetrain,
		MinAccuracy:             c.Learning.MinAccuracy,
	}
}

// Service returns the classifier configuration.
func (c *Config) Service() classifier.Config {
	svc := classifier.DefaultConfig()
	svc.Engine = c.engine()
	svc.Advisor = c.advisor()
	svc.Selector = feedback.SelectorConfig{
		Threshold:         c.Learning.LowConfidenceThreshold,
		HighPriorityBelow: c.Learning.HighPriorityBelow,
	}
	svc.Batch.Workers = c.Embedding.BatchWorkers
	svc.Batch.ChunkSize = c.Embedding.BatchChunkSize
	svc.SimilarTopK = c.Retrieval.TopK
	svc.MinSimilarity = c.Retrieval.MinSimilarity
	svc.Keywords = c.Classification.Keywords
	if len(svc.Keywords) == 0 {
		svc.Keywords = pattern.DefaultKeywords()
	}
	return svc
}

// Provider returns the embedding provider configuration.
func (c *Config) Provider() embedding.ProviderConfig {
	return embedding.ProviderConfig{
		Provider: c.Embedding.Provider,
		Model:    c.Embedding.Model,
		BaseURL:  c.Embedding.BaseURL,
		APIKey:   c.Embedding.APIKey,
		CacheDir: c.Embedding.CacheDir,
		Timeout:  c.Embedding.Timeout,
	}
}

// Generator returns the embedding generator configuration.
func (c *Config) Generator() embedding.GeneratorConfig {
	return embedding.GeneratorConfig{
		CacheTTL:          c.Embedding.CacheTTL,
		Timeout:           c.Embedding.Timeout,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Burst:             c.Embedding.Burst,
	}
}
