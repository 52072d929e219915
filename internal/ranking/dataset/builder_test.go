// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package dataset

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/sampling"
)

var base = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC) // Saturday

func fixtureCatalog(numItems int) *ranking.Catalog {
	users := []ranking.User{
		{UserID: "u1", AgeBucket: "25-34", Country: "US"},
		{UserID: "u2", AgeBucket: "under_13", Country: "GB", IsKidsProfile: true},
		{UserID: "u3", AgeBucket: "35-44", Country: "DE"},
	}
	items := make([]ranking.Item, 0, numItems)
	genres := []string{"Drama", "Kids", "Comedy"}
	for i := 0; i < numItems; i++ {
		items = append(items, ranking.Item{
			ItemID:      fmt.Sprintf("i%03d", i),
			Genre:       genres[i%len(genres)],
			Maturity:    "PG",
			ReleaseYear: 2000 + i%20,
			RuntimeMin:  90,
		})
	}
	return ranking.NewCatalog(users, items)
}

func fixtureEvents() []ranking.Event {
	return []ranking.Event{
		{UserID: "u1", ItemID: "i000", SessionID: "s1", Timestamp: base, Device: "tv", Grade: ranking.GradeLongPlay, WatchMinutes: 80},
		{UserID: "u1", ItemID: "i001", SessionID: "s1", Timestamp: base.Add(time.Minute), Device: "tv", Grade: ranking.GradeNone},
		{UserID: "u1", ItemID: "i002", SessionID: "s2", Timestamp: base.Add(time.Hour), Device: "mobile", Grade: ranking.GradeClick},
		{UserID: "u2", ItemID: "i003", SessionID: "s3", Timestamp: base.Add(2 * time.Hour), Device: "web", Grade: ranking.GradeShortPlay, WatchMinutes: 10},
		{UserID: "u3", ItemID: "i004", SessionID: "s4", Timestamp: base.Add(3 * time.Hour), Device: "tv", Grade: ranking.GradeClick},
	}
}

func newBuilder(t *testing.T, catalog *ranking.Catalog, negatives, workers int) *Builder {
	t.Helper()
	sampler, err := sampling.NewSampler(sampling.Config{Strategy: sampling.StrategyUniform}, catalog.ItemIDs(), nil)
	if err != nil {
		t.Fatalf("NewSampler() error = %v", err)
	}
	b, err := NewBuilder(Config{
		NegativesPerPositive: negatives,
		Seed:                 7,
		Workers:              workers,
		ReferenceYear:        2025,
	}, sampler, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func TestBuildLayout(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(30)
	b := newBuilder(t, catalog, 4, 2)
	events := fixtureEvents()

	rows, err := b.Build(context.Background(), events, catalog)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 4 positives (grade 0 event emits nothing), each followed by 4 negatives.
	if len(rows) != 4*5 {
		t.Fatalf("len(rows) = %d, want 20", len(rows))
	}

	wantPositives := []string{"i000", "i002", "i003", "i004"}
	for p, want := range wantPositives {
		pos := rows[p*5]
		if pos.IsNegative || pos.ItemID != want {
			t.Errorf("row %d = {item %s negative %v}, want positive %s", p*5, pos.ItemID, pos.IsNegative, want)
		}
		for j := 1; j <= 4; j++ {
			neg := rows[p*5+j]
			if !neg.IsNegative || neg.Grade != ranking.GradeNone || neg.WatchMinutes != 0 {
				t.Errorf("row %d is not a zero-grade negative: %+v", p*5+j, neg)
			}
			if neg.UserID != pos.UserID || neg.SessionID != pos.SessionID ||
				!neg.Timestamp.Equal(pos.Timestamp) || neg.Device != pos.Device {
				t.Errorf("negative %d does not inherit positive context", p*5+j)
			}
		}
	}
}

func TestBuildNegativesExcludeFullHistory(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(8)
	b := newBuilder(t, catalog, 5, 1)

	rows, err := b.Build(context.Background(), fixtureEvents(), catalog)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	u1History := map[string]bool{"i000": true, "i001": true, "i002": true}
	for _, r := range rows {
		if r.IsNegative && r.UserID == "u1" && u1History[r.ItemID] {
			t.Errorf("negative %s for u1 is in the user's history", r.ItemID)
		}
	}
}

func TestBuildJoinsAttributes(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(10)
	b := newBuilder(t, catalog, 0, 1)

	rows, err := b.Build(context.Background(), fixtureEvents(), catalog)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}

	kid := rows[2]
	if kid.UserID != "u2" || !kid.User.IsKidsProfile || kid.User.Country != "GB" {
		t.Errorf("user join = %+v", kid.User)
	}
	// i003 is Drama, released 2003.
	if kid.Item.Genre != "Drama" || kid.Cross.ItemAge != 22 || !kid.Cross.KidsMismatch {
		t.Errorf("cross features = %+v (item %+v)", kid.Cross, kid.Item)
	}
	if kid.Ctx.Hour != 22 || kid.Ctx.DayOfWeek != ranking.SaturdayIndex || !kid.Ctx.IsPrimeTime || !kid.Ctx.IsWeekend {
		t.Errorf("context features = %+v", kid.Ctx)
	}
}

func TestBuildJoinIntegrity(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(10)
	tests := []struct {
		name  string
		event ranking.Event
	}{
		{"unknown item", ranking.Event{UserID: "u1", ItemID: "missing", SessionID: "s", Timestamp: base, Grade: ranking.GradeClick}},
		{"unknown user", ranking.Event{UserID: "ghost", ItemID: "i000", SessionID: "s", Timestamp: base, Grade: ranking.GradeClick}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newBuilder(t, catalog, 2, 1)
			rows, err := b.Build(context.Background(), append(fixtureEvents(), tt.event), catalog)
			if !errors.Is(err, ranking.ErrJoinIntegrity) {
				t.Fatalf("Build() error = %v, want ErrJoinIntegrity", err)
			}
			if rows != nil {
				t.Errorf("Build() returned %d rows alongside error", len(rows))
			}
		})
	}
}

func TestBuildSamplingExhausted(t *testing.T) {
	t.Parallel()

	// u1 has seen 3 of 5 items, so 4 negatives cannot be drawn.
	catalog := fixtureCatalog(5)
	b := newBuilder(t, catalog, 4, 2)

	_, err := b.Build(context.Background(), fixtureEvents(), catalog)
	if !errors.Is(err, ranking.ErrSamplingExhausted) {
		t.Fatalf("Build() error = %v, want ErrSamplingExhausted", err)
	}
}

func TestBuildDeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(50)
	events := fixtureEvents()

	serial, err := newBuilder(t, catalog, 6, 1).Build(context.Background(), events, catalog)
	if err != nil {
		t.Fatalf("Build() serial error = %v", err)
	}
	parallel, err := newBuilder(t, catalog, 6, 8).Build(context.Background(), events, catalog)
	if err != nil {
		t.Fatalf("Build() parallel error = %v", err)
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Error("Build() output depends on worker count")
	}
}

func TestBuildCancelled(t *testing.T) {
	t.Parallel()

	catalog := fixtureCatalog(30)
	b := newBuilder(t, catalog, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Build(ctx, fixtureEvents(), catalog); !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
}

func TestNewBuilderValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewBuilder(Config{}, nil, zerolog.Nop()); err == nil {
		t.Error("NewBuilder(nil sampler) error = nil")
	}

	sampler, err := sampling.NewSampler(sampling.Config{Strategy: sampling.StrategyUniform}, []string{"a"}, nil)
	if err != nil {
		t.Fatalf("NewSampler() error = %v", err)
	}
	if _, err := NewBuilder(Config{NegativesPerPositive: -1}, sampler, zerolog.Nop()); err == nil {
		t.Error("NewBuilder(negative count) error = nil")
	}

	b, err := NewBuilder(Config{}, sampler, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if got, now := b.ReferenceYear(), time.Now().Year(); got != now && got != now-1 {
		t.Errorf("default ReferenceYear = %d, want current year %d", got, now)
	}
}
