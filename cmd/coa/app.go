package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/config"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/storage"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// app holds everything a command needs, built from configuration.
type app struct {
	cfg      *config.Config
	store    *storage.SQLiteStorage
	provider embedding.Provider
	cache    *embedding.MemoryCache
	registry *prometheus.Registry
	svc      *classifier.Service
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openStorage opens and migrates the configured database.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	if err := config.EnsureParent(cfg.Database.Path); err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newApp wires storage, the embedding pipeline, the similarity index and
// metrics into a classifier service.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store}

	a.provider, err = embedding.NewProvider(cfg.Provider())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	metrics, err := telemetry.New(a.registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cache = embedding.NewMemoryCache(cfg.Embedding.CacheTTL)
	generator := embedding.NewGenerator(a.provider, a.cache, cfg.Generator(), metrics)

	index, err := retrieval.NewChromemIndex(cfg.Retrieval.IndexPath, cfg.Retrieval.Compress)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc, err = classifier.New(store, generator, index, metrics, cfg.Service())
	if err != nil {
		a.Close()
		return nil, err
	}

	slog.Debug("Classifier ready",
		"database", cfg.Database.Path,
		"provider", a.provider.Name(),
		"index", cfg.Retrieval.IndexPath)
	return a, nil
}

// openApp loads configuration and builds the app.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

// warm loads reviewed history into the similarity index.
func (a *app) warm(ctx context.Context) error {
	n, err := a.svc.Warm(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm similarity index: %w", err)
	}
	slog.Debug("Similarity index warmed", "documents", n)
	return nil
}

// chart loads the company's chart of accounts.
func (a *app) chart(ctx context.Context, companyID string) (*model.ChartOfAccounts, error) {
	accounts, err := a.svc.Accounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return model.NewChartOfAccounts(accounts), nil
}

// Close releases everything newApp acquired.
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			slog.Warn("Failed to close embedding provider", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
}

// companyID returns the --company flag or COA_COMPANY.
func companyID() (string, error) {
	id := viper.GetString("company")
	if id == "" {
		return "", common.InvalidInput("company is required: pass --company or set COA_COMPANY")
	}
	return id, nil
}
