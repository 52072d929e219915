// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package dataset assembles the graded, listwise ranking dataset from raw
// engagement events.
package dataset

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/sampling"
)

// Config configures a Builder.
type Config struct {
	// NegativesPerPositive is the number of sampled negatives emitted after each positive.
	NegativesPerPositive int

	// Seed drives all sampling randomness.
	Seed int64

	// Workers bounds per-user parallelism. 0 uses GOMAXPROCS.
	Workers int

	// ReferenceYear anchors item age. 0 uses the current year.
	ReferenceYear int
}

// Builder turns events into candidate rows.
type Builder struct {
	cfg     Config
	sampler *sampling.Sampler
	logger  zerolog.Logger
}

// NewBuilder validates cfg and returns a Builder.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBuilder(cfg Config, sampler *sampling.Sampler, logger zerolog.Logger) (*Builder, error) {
	if sampler == nil {
		return nil, fmt.Errorf("sampler is required")
	}
	if cfg.NegativesPerPositive < 0 {
		return nil, fmt.Errorf("negatives_per_positive must be non-negative, got %d", cfg.NegativesPerPositive)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = time.Now().Year()
	}
	return &Builder{
		cfg:     cfg,
		sampler: sampler,
		logger:  logger.With().Str("component", "dataset").Logger(),
	}, nil
}

// ReferenceYear returns the year item_age is computed against.
func (b *Builder) ReferenceYear() int {
	return b.cfg.ReferenceYear
}

// Build emits, for every event with grade > 0 in input order, one positive
// row followed by its sampled negatives. Negatives exclude every item the
// user has interacted with in any session. Rows carry joined user and item
// attributes plus context and cross features; aggregates are applied
// separately (see AggregateTable.Apply).
//
// Build is all-or-nothing: any join failure or sampling failure aborts the
// whole batch.
func (b *Builder) Build(ctx context.Context, events []ranking.Event, catalog *ranking.Catalog) ([]ranking.CandidateRow, error) {
	history := make(map[string]map[string]struct{})
	for i := range events {
		ev := &events[i]
		h, ok := history[ev.UserID]
		if !ok {
			h = make(map[string]struct{})
			history[ev.UserID] = h
		}
		h[ev.ItemID] = struct{}{}
	}

	var positives []int
	byUser := make(map[string][]int)
	var userOrder []string
	for i := range events {
		ev := &events[i]
		if ev.Grade <= ranking.GradeNone {
			continue
		}
		if _, ok := catalog.Item(ev.ItemID); !ok {
			return nil, fmt.Errorf("%w: event %d references unknown item %q", ranking.ErrJoinIntegrity, i, ev.ItemID)
		}
		if _, ok := catalog.User(ev.UserID); !ok {
			return nil, fmt.Errorf("%w: event %d references unknown user %q", ranking.ErrJoinIntegrity, i, ev.UserID)
		}
		if _, seen := byUser[ev.UserID]; !seen {
			userOrder = append(userOrder, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], len(positives))
		positives = append(positives, i)
	}

	negatives := make([][]string, len(positives))
	if b.cfg.NegativesPerPositive > 0 && len(positives) > 0 {
		p := pool.New().WithMaxGoroutines(b.cfg.Workers).WithContext(ctx).WithCancelOnError()
		for _, userID := range userOrder {
			userID := userID
			slots := byUser[userID]
			p.Go(func(ctx context.Context) error {
				rng := rand.New(rand.NewSource(userSeed(b.cfg.Seed, userID))) //nolint:gosec // sampling, not security
				for _, slot := range slots {
					if err := ctx.Err(); err != nil {
						return err
					}
					negs, err := b.sampler.Sample(history[userID], b.cfg.NegativesPerPositive, rng)
					if err != nil {
						return fmt.Errorf("sample negatives for user %q: %w", userID, err)
					}
					negatives[slot] = negs
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
	}

	rows := make([]ranking.CandidateRow, 0, len(positives)*(1+b.cfg.NegativesPerPositive))
	for slot, evIdx := range positives {
		ev := &events[evIdx]
		user, _ := catalog.User(ev.UserID)
		item, _ := catalog.Item(ev.ItemID)
		rows = append(rows, b.row(ev, user, item, ev.Grade, ev.WatchMinutes, false))

		for _, negID := range negatives[slot] {
			negItem, ok := catalog.Item(negID)
			if !ok {
				return nil, fmt.Errorf("%w: sampled item %q is not in the catalog", ranking.ErrJoinIntegrity, negID)
			}
			rows = append(rows, b.row(ev, user, negItem, ranking.GradeNone, 0, true))
		}
	}

	b.logger.Debug().
		Int("events", len(events)).
		Int("positives", len(positives)).
		Int("rows", len(rows)).
		Int("users", len(userOrder)).
		Msg("Ranking dataset built")

	return rows, nil
}

func (b *Builder) row(ev *ranking.Event, user ranking.User, item ranking.Item, grade ranking.Grade, watch float64, negative bool) ranking.CandidateRow {
	return ranking.CandidateRow{
		UserID:       ev.UserID,
		SessionID:    ev.SessionID,
		ItemID:       item.ItemID,
		Timestamp:    ev.Timestamp,
		Device:       ev.Device,
		Grade:        grade,
		WatchMinutes: watch,
		IsNegative:   negative,
		User:         user,
		Item:         item,
		Ctx:          ranking.ContextAt(ev.Timestamp),
		Cross:        ranking.DeriveCross(user, item, b.cfg.ReferenceYear),
	}
}

// userSeed derives a per-user seed so the output does not depend on how
// users are scheduled across workers.
func userSeed(seed int64, userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return seed ^ int64(h.Sum64()) //nolint:gosec // intentional wraparound
}
