// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/online"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

// ModelReloader makes a registry version the served model.
type ModelReloader interface {
	Reload(ctx context.Context, version int) error
}

// CatalogSource reads the users and items requests are validated against.
// *database.DB implements it.
type CatalogSource interface {
	Users(ctx context.Context) ([]ranking.User, error)
	Items(ctx context.Context) ([]ranking.Item, error)
}

// ScorerReloader refreshes the scorer's catalog and model after a new
// version is published.
type ScorerReloader struct {
	scorer   *online.Scorer
	registry *registry.Registry
	catalog  CatalogSource
	logger   zerolog.Logger
}

// NewScorerReloader creates a reloader. catalog may be nil, in which case
// only the model is swapped.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScorerReloader(scorer *online.Scorer, reg *registry.Registry, catalog CatalogSource, logger zerolog.Logger) *ScorerReloader {
	return &ScorerReloader{
		scorer:   scorer,
		registry: reg,
		catalog:  catalog,
		logger:   logger.With().Str("component", "model_reloader").Logger(),
	}
}

// Reload serves version (0 for latest). A version at or below the one
// already served is ignored, so late or reordered events never roll the
// model back. Explicit downgrades use Scorer.LoadVersion directly.
func (r *ScorerReloader) Reload(ctx context.Context, version int) error {
	if snap := r.scorer.Current(); snap != nil && version != 0 && version <= snap.Meta.Version {
		r.logger.Debug().
			Int("version", version).
			Int("served_version", snap.Meta.Version).
			Msg("Ignoring reload of a version not newer than the served one")
		return nil
	}
	if err := r.registry.Refresh(); err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}

	if r.catalog != nil {
		users, err := r.catalog.Users(ctx)
		if err != nil {
			return fmt.Errorf("reload users: %w", err)
		}
		items, err := r.catalog.Items(ctx)
		if err != nil {
			return fmt.Errorf("reload items: %w", err)
		}
		r.scorer.SwapCatalog(ranking.NewCatalog(users, items))
	}

	if err := r.scorer.LoadVersion(ctx, r.registry, version); err != nil {
		return fmt.Errorf("load version %d: %w", version, err)
	}
	return nil
}
