// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/events"
	"github.com/tomtom215/marquee/internal/logging"
)

// EventConsumer delivers model-published events. *events.Bus implements it.
type EventConsumer interface {
	Consume(ctx context.Context, fn events.Handler) error
}

// ModelEventsService loads the version announced by each model-published
// event. It picks up models trained by other processes, such as cmd/train
// on a shared registry over NATS.
type ModelEventsService struct {
	consumer EventConsumer
	reloader ModelReloader
	logger   zerolog.Logger
	name     string
}

// NewModelEventsService creates the consumer service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewModelEventsService(consumer EventConsumer, reloader ModelReloader, logger zerolog.Logger) *ModelEventsService {
	return &ModelEventsService{
		consumer: consumer,
		reloader: reloader,
		logger:   logger.With().Str("service", "model_events").Logger(),
		name:     "model-events-service",
	}
}

// Serve implements suture.Service. A closed subscription is returned as an
// error so suture resubscribes.
func (s *ModelEventsService) Serve(ctx context.Context) error {
	s.logger.Info().Msg("Model events consumer starting")
	err := s.consumer.Consume(ctx, s.handle)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errSubscriptionClosed
	}
	return err
}

func (s *ModelEventsService) handle(ctx context.Context, ev events.ModelPublished) error {
	logger := logging.Ctx(ctx).With().
		Str("service", "model_events").
		Int("version", ev.Version).
		Str("run_id", ev.RunID).
		Logger()

	if err := s.reloader.Reload(ctx, ev.Version); err != nil {
		logger.Warn().Err(err).Msg("Failed to load published model")
		return err
	}
	logger.Info().Msg("Published model loaded")
	return nil
}

// String names the service in supervisor logs.
func (s *ModelEventsService) String() string {
	return s.name
}
