// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/marquee/internal/api"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/database"
	"github.com/tomtom215/marquee/internal/events"
	"github.com/tomtom215/marquee/internal/featurestore"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/online"
	"github.com/tomtom215/marquee/internal/ranking/pipeline"
	"github.com/tomtom215/marquee/internal/ranking/registry"
	"github.com/tomtom215/marquee/internal/supervisor"
	"github.com/tomtom215/marquee/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

//nolint:gocyclo // sequential startup wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("duckdb_path", cfg.Database.Path).
		Str("model_dir", cfg.Registry.Dir).
		Bool("training_enabled", cfg.Training.Enabled).
		Str("events_backend", cfg.Events.Backend).
		Msg("Starting Marquee ranking server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	reg, err := registry.Open(cfg.Registry.Dir)
	if err != nil {
		return err
	}

	var (
		aggregates online.AggregateSource
		sink       pipeline.AggregateSink
	)
	if cfg.FeatureStore.Enabled {
		store, err := featurestore.Open(featurestore.Options{
			Path:      cfg.FeatureStore.Path,
			InMemory:  cfg.FeatureStore.InMemory,
			CacheSize: cfg.FeatureStore.CacheSize,
			CacheTTL:  cfg.FeatureStore.CacheTTL,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing feature store")
			}
		}()
		aggregates, sink = store, store
	} else {
		logging.Info().Msg("Feature store disabled, aggregate features are zero at serve time")
	}

	bus, err := events.New(&cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	catalog, err := loadCatalog(ctx, db)
	if err != nil {
		return err
	}
	scorer := online.NewScorer(catalog, aggregates, online.Config{
		ReferenceYear:   cfg.Features.ReferenceYear,
		BreakerFailures: cfg.FeatureStore.BreakerFailures,
		BreakerTimeout:  cfg.FeatureStore.BreakerTimeout,
	}, logging.Logger())

	switch err := scorer.LoadVersion(ctx, reg, 0); {
	case err == nil:
	case errors.Is(err, registry.ErrModelNotFound):
		logging.Info().Msg("Model registry is empty, serving will start after the first training run")
	default:
		logging.Warn().Err(err).Msg("Failed to load latest model")
	}

	reloader := services.NewScorerReloader(scorer, reg, db, logging.Logger())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromServer(&cfg.Server))
	if err != nil {
		return err
	}

	var trigger api.TrainingTrigger
	if cfg.Training.Enabled {
		trainer, err := pipeline.NewTrainer(cfg, pipeline.Deps{
			Source:    db,
			Loader:    db,
			Exporter:  db,
			Registry:  reg,
			Store:     sink,
			Publisher: bus,
		}, logging.Logger())
		if err != nil {
			return err
		}
		trainingSvc := services.NewTrainingService(trainer, reloader, services.TrainingServiceConfigFrom(&cfg.Training), logging.Logger())
		tree.AddTrainingService(trainingSvc)
		trigger = trainingSvc
	}

	tree.AddMessagingService(services.NewModelEventsService(bus, reloader, logging.Logger()))

	handler := api.NewHandler(scorer, reg, trigger)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Server)))
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Some services did not stop within the shutdown timeout")
	}
	logging.Info().Msg("Server stopped")
	return nil
}

// loadCatalog reads whatever catalog DuckDB already holds. An empty catalog
// is replaced after the first training run loads the CSV exports.
func loadCatalog(ctx context.Context, db *database.DB) (*ranking.Catalog, error) {
	users, err := db.Users(ctx)
	if err != nil {
		return nil, err
	}
	items, err := db.Items(ctx)
	if err != nil {
		return nil, err
	}
	logging.Info().Int("users", len(users)).Int("items", len(items)).Msg("Catalog loaded")
	return ranking.NewCatalog(users, items), nil
}
