package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/rulesift/rulesift/internal/advisor"
	"github.com/rulesift/rulesift/internal/analysis"
	"github.com/rulesift/rulesift/internal/config"
	"github.com/rulesift/rulesift/internal/logging"
	"github.com/rulesift/rulesift/internal/observability"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/store"
	"github.com/rulesift/rulesift/internal/store/postgres"
	"github.com/rulesift/rulesift/internal/store/rediscache"
	"github.com/rulesift/rulesift/internal/store/sqlite"
)

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)
}

func analyzerOptions(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (analysis.Options, error) {
	kinds, err := relations.ParseKinds(cfg.Analysis.Detectors)
	if err != nil {
		return analysis.Options{}, err
	}
	opts := analysis.DefaultOptions()
	opts.Detectors = kinds
	opts.Thresholds = cfg.Thresholds
	opts.Fuzz = cfg.Fuzz
	opts.Seed = cfg.Analysis.Seed
	opts.DisablePruning = !cfg.Analysis.Prune
	opts.Workers = cfg.Analysis.Workers
	opts.UseLoggedHits = cfg.Analysis.UseLoggedHits
	opts.Logger = logger
	opts.Metrics = metrics
	if cfg.Analysis.Advisor {
		opts.Advisor = advisor.Heuristic{}
	}
	return opts, nil
}

// openStore returns nil when no storage driver is configured.
func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.Storage.Driver {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.ResolvePath(cfg.Storage.Path))
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func requireStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("no storage configured; set storage.driver to sqlite or postgres")
	}
	return repo, nil
}

// openCache returns a disabled cache when caching is off.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rediscache.Cache, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("result cache unavailable", logging.Error(err))
		_ = client.Close()
		return nil, func() {}
	}
	return rediscache.New(client, cfg.Cache.TTL), func() { _ = client.Close() }
}
