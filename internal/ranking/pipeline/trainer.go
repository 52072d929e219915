// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/database"
	"github.com/tomtom215/marquee/internal/events"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/dataset"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

var (
	// ErrTrainingInProgress is returned when Train is called during a run.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrEmptyTrainingSet is returned when the train partition has no rows.
	ErrEmptyTrainingSet = errors.New("train partition is empty")
)

// DataSource supplies the raw tables of a run.
type DataSource interface {
	Users(ctx context.Context) ([]ranking.User, error)
	Items(ctx context.Context) ([]ranking.Item, error)
	Events(ctx context.Context) ([]ranking.Event, error)
}

// Loader refreshes the data source from CSV exports.
type Loader interface {
	LoadCSV(ctx context.Context, src database.Sources) (database.LoadStats, error)
}

// Exporter writes a partition to Parquet.
type Exporter interface {
	ExportParquet(ctx context.Context, path string, rows []ranking.CandidateRow) error
}

// AggregateSink receives the aggregates serving should use with a model.
type AggregateSink interface {
	Replace(ctx context.Context, table dataset.AggregateTable, modelVersion int) error
}

// Publisher announces new model versions.
type Publisher interface {
	PublishModel(ctx context.Context, event events.ModelPublished) error
}

// Deps are the collaborators of a Trainer. Source and Registry are
// required; the rest are skipped when nil.
type Deps struct {
	Source    DataSource
	Loader    Loader
	Exporter  Exporter
	Registry  *registry.Registry
	Store     AggregateSink
	Publisher Publisher
	Ranker    ranker.Ranker
}

// RowCounts are the dataset sizes of a run.
type RowCounts struct {
	All   int `json:"all"`
	Train int `json:"train"`
	Val   int `json:"val"`
	Test  int `json:"test"`
}

// Result summarizes a completed run.
type Result struct {
	RunID    string            `json:"run_id"`
	Version  int               `json:"version"`
	Rows     RowCounts         `json:"rows"`
	Metrics  registry.Metrics  `json:"metrics"`
	Meta     registry.Metadata `json:"-"`
	Duration time.Duration     `json:"duration"`
}

// Status reports the trainer state for health checks.
type Status struct {
	InProgress  bool      `json:"in_progress"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastVersion int       `json:"last_version,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
}

// Trainer runs training passes.
type Trainer struct {
	cfg    *config.Config
	deps   Deps
	logger zerolog.Logger

	runMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// NewTrainer validates deps and returns a Trainer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTrainer(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Trainer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("data source is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}
	if deps.Ranker == nil {
		deps.Ranker = ranker.NewLinearRanker()
	}
	return &Trainer{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "trainer").Logger(),
	}, nil
}

// Status returns a copy of the current trainer state.
func (t *Trainer) Status() Status {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

// Train executes one run. It returns ErrTrainingInProgress instead of
// queuing behind a concurrent run.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	if !t.runMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer t.runMu.Unlock()

	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	logger := t.logger.With().Str("run_id", runID).Logger()

	t.setStatus(func(s *Status) { s.InProgress = true })

	start := time.Now()
	logger.Info().Msg("Starting training run")

	res, err := t.run(ctx, runID, logger)
	duration := time.Since(start)
	metrics.RecordTrainingRun(duration, err)

	t.setStatus(func(s *Status) {
		s.InProgress = false
		s.LastRunAt = start
		s.Runs++
		if err != nil {
			s.LastError = err.Error()
			return
		}
		s.LastError = ""
		s.LastVersion = res.Version
	})

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("Training run failed")
		return nil, err
	}

	res.Duration = duration
	logger.Info().
		Int("version", res.Version).
		Float64("val_ndcg", res.Metrics.Val.NDCG).
		Float64("test_ndcg", res.Metrics.Test.NDCG).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("Training run complete")
	return res, nil
}

func (t *Trainer) setStatus(fn func(*Status)) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	fn(&t.status)
}

// stage times fn and records it under name.
func stage(logger *zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.RecordTrainingStage(name, elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("Stage complete")
	return nil
}

// timed is stage for steps that cannot fail.
func timed(logger *zerolog.Logger, name string, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	metrics.RecordTrainingStage(name, elapsed)
	logger.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("Stage complete")
}
