// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Command train runs one training pass and prints its metrics as JSON on
// stdout. Configuration is read the same way as cmd/server. With
// EVENTS_BACKEND=nats the new version is announced to running servers.
//
//	export DATA_USERS_PATH=/data/raw/users.csv
//	export DATA_ITEMS_PATH=/data/raw/items.csv
//	export DATA_INTERACTIONS_PATH=/data/raw/interactions.csv
//	export MODEL_DIR=/data/models
//	./train > metrics.json
//
// The exit status is 1 when the run fails.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/database"
	"github.com/tomtom215/marquee/internal/events"
	"github.com/tomtom215/marquee/internal/featurestore"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ranking/pipeline"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Training failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// stdout carries the report, so logs go to stderr via the default writer.
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

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

	deps := pipeline.Deps{
		Source:   db,
		Loader:   db,
		Exporter: db,
		Registry: reg,
	}

	if cfg.FeatureStore.Enabled && !cfg.FeatureStore.InMemory {
		store, err := featurestore.Open(featurestore.Options{Path: cfg.FeatureStore.Path})
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing feature store")
			}
		}()
		deps.Store = store
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
	deps.Publisher = bus

	trainer, err := pipeline.NewTrainer(cfg, deps, logging.Logger())
	if err != nil {
		return err
	}

	result, err := trainer.Train(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
