// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/ranking/pipeline"
)

// Trainer runs one training pass. *pipeline.Trainer implements it.
type Trainer interface {
	Train(ctx context.Context) (*pipeline.Result, error)
	Status() pipeline.Status
}

// TrainingServiceConfig configures the training loop.
type TrainingServiceConfig struct {
	// TrainOnStartup runs once when the service starts.
	TrainOnStartup bool

	// TrainInterval is the retraining period. Default: 24h
	TrainInterval time.Duration

	// RunTimeout bounds a single run. Default: 30m
	RunTimeout time.Duration
}

// TrainingServiceConfigFrom maps the training section.
func TrainingServiceConfigFrom(cfg *config.TrainingConfig) TrainingServiceConfig {
	return TrainingServiceConfig{
		TrainOnStartup: cfg.TrainOnStartup,
		TrainInterval:  cfg.TrainInterval,
	}
}

// TrainingService runs the training pipeline under supervision and serves
// each new model as soon as it is saved.
type TrainingService struct {
	trainer  Trainer
	reloader ModelReloader
	config   TrainingServiceConfig
	logger   zerolog.Logger
	trigger  chan struct{}
	name     string
}

// NewTrainingService creates the service. reloader may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTrainingService(trainer Trainer, reloader ModelReloader, cfg TrainingServiceConfig, logger zerolog.Logger) *TrainingService {
	if cfg.TrainInterval <= 0 {
		cfg.TrainInterval = 24 * time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &TrainingService{
		trainer:  trainer,
		reloader: reloader,
		config:   cfg,
		logger:   logger.With().Str("service", "training").Logger(),
		trigger:  make(chan struct{}, 1),
		name:     "training-service",
	}
}

// Trigger queues a run. It returns pipeline.ErrTrainingInProgress when a
// run is executing or one is already queued.
func (s *TrainingService) Trigger() error {
	if s.trainer.Status().InProgress {
		return pipeline.ErrTrainingInProgress
	}
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return pipeline.ErrTrainingInProgress
	}
}

// Status reports the trainer state.
func (s *TrainingService) Status() pipeline.Status {
	return s.trainer.Status()
}

// Serve implements suture.Service.
func (s *TrainingService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("train_interval", s.config.TrainInterval).
		Msg("Training service starting")

	if s.config.TrainOnStartup {
		s.run(ctx, "startup")
	}

	ticker := time.NewTicker(s.config.TrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Training service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx, "schedule")
		case <-s.trigger:
			s.run(ctx, "manual")
		}
	}
}

func (s *TrainingService) run(ctx context.Context, reason string) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	logger := s.logger.With().Str("reason", reason).Logger()
	logger.Info().Msg("Training run triggered")

	result, err := s.trainer.Train(runCtx)
	switch {
	case errors.Is(err, pipeline.ErrTrainingInProgress):
		logger.Debug().Msg("Training already in progress, skipping")
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Msg("Training run failed")
		return
	}

	logger.Info().
		Int("version", result.Version).
		Str("run_id", result.RunID).
		Float64("val_ndcg", result.Metrics.Val.NDCG).
		Dur("duration", result.Duration).
		Msg("Training run complete")

	if s.reloader != nil {
		if err := s.reloader.Reload(ctx, result.Version); err != nil {
			logger.Error().Err(err).Int("version", result.Version).Msg("Failed to serve trained model")
		}
	}
}

// String names the service in supervisor logs.
func (s *TrainingService) String() string {
	return s.name
}
