package cmd

import (
	"context"
	"fmt"

	"github.com/adjudex/adjudex"
	"github.com/adjudex/adjudex/internal/config"
	"github.com/adjudex/adjudex/internal/geocode"
	"github.com/adjudex/adjudex/internal/sources"
	"github.com/adjudex/adjudex/internal/storage"
	"github.com/adjudex/adjudex/internal/storage/memory"
	"github.com/adjudex/adjudex/internal/storage/postgres"
	"github.com/adjudex/adjudex/pkg/logging"
)

// newStore opens PostgreSQL when a DSN is configured, otherwise the
// in-memory store.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logging.Info().Msg("no DATABASE_URL set, using in-memory store")
		return memory.New(), nil
	}

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return store, nil
}

// buildAdapters instantiates the enabled sources from sources.yaml.
func buildAdapters(cfg *config.Config) ([]sources.Adapter, error) {
	file, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	var adapters []sources.Adapter
	for _, name := range sources.Names() {
		settings := file.Settings(name)
		if !settings.IsEnabled() {
			logging.Debug().Str("source", name).Msg("source disabled by configuration")
			continue
		}
		adapter, err := sources.New(name, sources.Config{
			BaseURL:     settings.BaseURL,
			MinInterval: settings.MinInterval,
			Departments: settings.Departments,
			MaxPages:    settings.MaxPages,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return adapters, nil
}

// newRunner assembles the pipeline from configuration.
func newRunner(cfg *config.Config, store storage.Store) (*adjudex.Runner, error) {
	adapters, err := buildAdapters(cfg)
	if err != nil {
		return nil, err
	}

	opts := []adjudex.Option{
		adjudex.WithAdapters(adapters...),
		adjudex.WithGeocoder(geocode.NewBAN(cfg.BANBaseURL)),
	}
	if cfg.Workers > 0 {
		opts = append(opts, adjudex.WithWorkers(cfg.Workers))
	}
	if cfg.MaxPages > 0 {
		opts = append(opts, adjudex.WithMaxPages(cfg.MaxPages))
	}
	if cfg.RunTimeout > 0 {
		opts = append(opts, adjudex.WithTimeout(cfg.RunTimeout))
	}
	if cfg.GeocodeBatch > 0 {
		opts = append(opts, adjudex.WithGeocodeBatch(cfg.GeocodeBatch))
	}

	return adjudex.New(store, opts...)
}
