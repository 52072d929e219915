// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/features"
	"github.com/tomtom215/marquee/internal/ranking/online"
	"github.com/tomtom215/marquee/internal/ranking/ranker"
	"github.com/tomtom215/marquee/internal/ranking/registry"
)

type staticCatalog struct {
	users []ranking.User
	items []ranking.Item
	calls int
}

func (c *staticCatalog) Users(context.Context) ([]ranking.User, error) {
	c.calls++
	return c.users, nil
}

func (c *staticCatalog) Items(context.Context) ([]ranking.Item, error) {
	return c.items, nil
}

func saveTestModel(t *testing.T, reg *registry.Registry, catalog *ranking.Catalog) {
	t.Helper()
	ts := time.Date(2025, 1, 6, 20, 0, 0, 0, time.UTC)
	var records []features.Record
	for _, iid := range catalog.ItemIDs() {
		user, _ := catalog.User("u1")
		item, _ := catalog.Item(iid)
		row := ranking.CandidateRow{
			UserID: "u1", SessionID: "s1", ItemID: iid, Timestamp: ts, Device: "tv",
			User: user, Item: item,
			Ctx:   ranking.ContextAt(ts),
			Cross: ranking.DeriveCross(user, item, 2025),
		}
		records = append(records, row.Record())
	}
	enc := features.Fit(records, ranking.FeatureFields())

	width := enc.Width()
	model := &ranker.LinearModel{
		Weights: make([]float64, width),
		Mean:    make([]float64, width),
		Scale:   make([]float64, width),
	}
	for i := range model.Scale {
		model.Scale[i] = 1
	}
	if _, err := reg.Save(context.Background(), model, registry.Metadata{
		ModelType: ranker.LinearRankerName,
		Features:  enc.Columns(),
		Schema:    enc.Schema(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestScorerReloader(t *testing.T) {
	t.Parallel()
	source := &staticCatalog{
		users: []ranking.User{{UserID: "u1", AgeBucket: "25-34", Country: "US"}},
		items: []ranking.Item{
			{ItemID: "a", Genre: "Drama", Maturity: "R", ReleaseYear: 2001, RuntimeMin: 120},
			{ItemID: "b", Genre: "Kids", Maturity: "G", ReleaseYear: 2020, RuntimeMin: 80},
		},
	}
	catalog := ranking.NewCatalog(source.users, source.items)

	dir := t.TempDir()
	reg, err := registry.Open(dir)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	scorer := online.NewScorer(ranking.NewCatalog(nil, nil), nil, online.Config{ReferenceYear: 2025}, zerolog.Nop())
	reloader := NewScorerReloader(scorer, reg, source, zerolog.Nop())

	if err := reloader.Reload(context.Background(), 0); !errors.Is(err, registry.ErrModelNotFound) {
		t.Fatalf("Reload on empty registry = %v, want ErrModelNotFound", err)
	}

	// A second handle writes the version, as cmd/train would.
	writer, err := registry.Open(dir)
	if err != nil {
		t.Fatalf("registry.Open writer: %v", err)
	}
	saveTestModel(t, writer, catalog)

	if err := reloader.Reload(context.Background(), 1); err != nil {
		t.Fatalf("Reload(1) = %v", err)
	}
	if snap := scorer.Current(); snap == nil || snap.Meta.Version != 1 {
		t.Fatalf("served snapshot = %+v, want version 1", snap)
	}
	if _, err := scorer.Rank(context.Background(), "u1", []string{"a", "b"}, online.DefaultContext()); err != nil {
		t.Errorf("Rank with reloaded catalog = %v", err)
	}

	calls := source.calls
	if err := reloader.Reload(context.Background(), 1); err != nil {
		t.Fatalf("repeat Reload(1) = %v", err)
	}
	if source.calls != calls {
		t.Error("reloading the served version re-read the catalog")
	}

	saveTestModel(t, writer, catalog)
	if err := reloader.Reload(context.Background(), 2); err != nil {
		t.Fatalf("Reload(2) = %v", err)
	}
	// A late event for an older version must not roll the model back.
	if err := reloader.Reload(context.Background(), 1); err != nil {
		t.Fatalf("late Reload(1) = %v", err)
	}
	if snap := scorer.Current(); snap == nil || snap.Meta.Version != 2 {
		t.Fatalf("served snapshot after late event = %+v, want version 2", snap)
	}

	// An explicit activation can still downgrade.
	if err := scorer.LoadVersion(context.Background(), reg, 1); err != nil {
		t.Fatalf("LoadVersion(1) = %v", err)
	}
	if snap := scorer.Current(); snap.Meta.Version != 1 {
		t.Errorf("served version after explicit downgrade = %d, want 1", snap.Meta.Version)
	}
}
