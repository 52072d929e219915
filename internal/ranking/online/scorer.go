// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package online ranks candidate items at request time with the model and
// feature schema frozen at training time.
//
// # Consistency
//
// Rows are assembled as ranking.CandidateRow values with the same context
// and cross feature derivation as the offline builder, and encoded by a
// features.Encoder rebuilt from registry metadata. Aggregate features come
// from the feature store when one is configured and are zero-filled
// otherwise.
//
// # Thread Safety
//
// The served model is held in an atomic pointer and replaced whole by Swap.
// Rank reads one snapshot per call and never mutates shared state.
package online

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/marquee/internal/featurestore"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/features"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

// Request context defaults.
const (
	DefaultDevice    = "tv"
	DefaultHour      = 20
	DefaultDayOfWeek = 2
	DefaultSessionID = "s_online"
)

const breakerName = "featurestore"

// Context describes the request. Zero-valued Device and SessionID take the
// defaults; use DefaultContext for the documented hour and day.
type Context struct {
	Device    string
	Hour      int
	DayOfWeek int
	SessionID string
}

// DefaultContext returns the context used when a request supplies none.
func DefaultContext() Context {
	return Context{
		Device:    DefaultDevice,
		Hour:      DefaultHour,
		DayOfWeek: DefaultDayOfWeek,
		SessionID: DefaultSessionID,
	}
}

// ScoredItem is one ranked candidate.
type ScoredItem struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// AggregateSource supplies aggregate features. *featurestore.Store
// implements it.
type AggregateSource interface {
	Lookup(ctx context.Context, userID string, itemIDs []string) (featurestore.Lookup, error)
}

// Snapshot is an immutable model bundle.
type Snapshot struct {
	Model   ranker.Model
	Encoder *features.Encoder
	Meta    registry.Metadata

	// ReferenceYear is the training-time anchor for item_age, or 0 when
	// the metadata predates it.
	ReferenceYear int
}

// NewSnapshot pairs a loaded model with the encoder rebuilt from its
// metadata and checks that their widths agree.
func NewSnapshot(loaded *registry.Loaded) (*Snapshot, error) {
	enc, err := features.FromSchema(loaded.Meta.Schema)
	if err != nil {
		return nil, fmt.Errorf("rebuild encoder for version %d: %w", loaded.Meta.Version, err)
	}
	if enc.Width() != loaded.Model.Width() {
		return nil, fmt.Errorf("%w: schema has %d columns, model expects %d",
			ranker.ErrFeatureWidth, enc.Width(), loaded.Model.Width())
	}
	return &Snapshot{
		Model:         loaded.Model,
		Encoder:       enc,
		Meta:          loaded.Meta,
		ReferenceYear: loaded.Meta.ReferenceYear,
	}, nil
}

// Config configures a Scorer.
type Config struct {
	// ReferenceYear anchors item age for models whose metadata does not
	// record a training year. 0 uses the current year.
	ReferenceYear int

	// BreakerFailures is the consecutive lookup failures that open the
	// feature store circuit.
	BreakerFailures uint32

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration
}

// Scorer ranks candidates.
type Scorer struct {
	catalog atomic.Pointer[ranking.Catalog]
	store   AggregateSource
	breaker *gobreaker.CircuitBreaker[featurestore.Lookup]
	cfg     Config
	logger  zerolog.Logger

	current atomic.Pointer[Snapshot]
}

// NewScorer returns a Scorer with no model loaded. store may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScorer(catalog *ranking.Catalog, store AggregateSource, cfg Config, logger zerolog.Logger) *Scorer {
	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = time.Now().Year()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	s := &Scorer{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "online_scorer").Logger(),
	}
	s.catalog.Store(catalog)

	if store != nil {
		metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
		s.breaker = gobreaker.NewCircuitBreaker[featurestore.Lookup](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Feature store circuit breaker state transition")
				metrics.RecordBreakerState(name, from.String(), to.String(), stateToFloat(to))
			},
		})
	}
	return s
}

// Swap atomically replaces the served model.
func (s *Scorer) Swap(snap *Snapshot) {
	s.current.Store(snap)
	if snap != nil {
		metrics.ModelVersion.Set(float64(snap.Meta.Version))
		s.logger.Info().
			Int("version", snap.Meta.Version).
			Int("features", snap.Encoder.Width()).
			Int("best_iteration", snap.Model.BestIteration()).
			Msg("Serving model updated")
	}
}

// SwapCatalog replaces the users and items requests are validated against.
// Requests already in flight finish with the catalog they started with.
func (s *Scorer) SwapCatalog(catalog *ranking.Catalog) {
	s.catalog.Store(catalog)
}

// Current returns the served snapshot, or nil before the first Swap.
func (s *Scorer) Current() *Snapshot {
	return s.current.Load()
}

// LoadVersion loads a registry version (0 for latest) and serves it.
func (s *Scorer) LoadVersion(ctx context.Context, reg *registry.Registry, version int) error {
	loaded, err := reg.Load(ctx, version)
	if err != nil {
		return err
	}
	snap, err := NewSnapshot(loaded)
	if err != nil {
		return err
	}
	s.Swap(snap)
	return nil
}

// Rank scores candidates for userID and returns them by descending score,
// ties in candidate order. Every id is validated before scoring and no
// partial result is returned on error.
//
//nolint:gocritic // Context is four small fields
func (s *Scorer) Rank(ctx context.Context, userID string, candidates []string, rc Context) ([]ScoredItem, error) {
	start := time.Now()
	out, err := s.rank(ctx, userID, candidates, rc)
	metrics.RecordRank(resultLabel(err), len(candidates), time.Since(start))
	return out, err
}

//nolint:gocritic // Context is four small fields
func (s *Scorer) rank(ctx context.Context, userID string, candidates []string, rc Context) ([]ScoredItem, error) {
	if len(candidates) == 0 {
		return nil, ranking.ErrEmptyCandidateSet
	}
	snap := s.current.Load()
	catalog := s.catalog.Load()
	if snap == nil || catalog == nil {
		return nil, ranking.ErrNotTrained
	}

	user, ok := catalog.User(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ranking.ErrUnknownUser, userID)
	}
	items := make([]ranking.Item, len(candidates))
	for i, id := range candidates {
		item, ok := catalog.Item(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ranking.ErrUnknownItem, id)
		}
		items[i] = item
	}

	if rc.Device == "" {
		rc.Device = DefaultDevice
	}
	if rc.SessionID == "" {
		rc.SessionID = DefaultSessionID
	}

	aggs := s.aggregates(ctx, userID, candidates)
	derived := ranking.DeriveContext(rc.Hour, rc.DayOfWeek)
	refYear := snap.ReferenceYear
	if refYear == 0 {
		refYear = s.cfg.ReferenceYear
	}

	records := make([]features.Record, len(items))
	for i, item := range items {
		row := ranking.CandidateRow{
			UserID:    userID,
			SessionID: rc.SessionID,
			ItemID:    item.ItemID,
			Device:    rc.Device,
			User:      user,
			Item:      item,
			Ctx:       derived,
			Cross:     ranking.DeriveCross(user, item, refYear),
			UserAgg:   aggs.User,
			ItemAgg:   aggs.Items[item.ItemID],
		}
		records[i] = row.Record()
	}

	matrix := snap.Encoder.Encode(records)
	scores, err := snap.Model.Predict(matrix.Rows)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	ranked := make([]ScoredItem, len(candidates))
	for i, id := range candidates {
		ranked[i] = ScoredItem{ItemID: id, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
	return ranked, nil
}

// aggregates reads the feature store through the breaker. Any failure falls
// back to zero-filled aggregates.
func (s *Scorer) aggregates(ctx context.Context, userID string, itemIDs []string) featurestore.Lookup {
	empty := featurestore.Lookup{Items: map[string]ranking.Aggregates{}}
	if s.store == nil {
		return empty
	}

	lookup, err := s.breaker.Execute(func() (featurestore.Lookup, error) {
		return s.store.Lookup(ctx, userID, itemIDs)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(breakerName, "rejected")
		metrics.RecordFeatureStoreFallback("breaker_open")
		return empty
	case err != nil:
		metrics.RecordBreakerRequest(breakerName, "failure")
		metrics.RecordFeatureStoreFallback("error")
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Aggregate lookup failed, using zero-filled aggregates")
		return empty
	}

	metrics.RecordBreakerRequest(breakerName, "success")
	if lookup.Missing > 0 {
		metrics.RecordFeatureStoreFallback("missing")
	}
	if lookup.Items == nil {
		lookup.Items = empty.Items
	}
	return lookup
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ranking.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, ranking.ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ranking.ErrEmptyCandidateSet):
		return "empty"
	case errors.Is(err, ranking.ErrNotTrained):
		return "not_trained"
	default:
		return "error"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
