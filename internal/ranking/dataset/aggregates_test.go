// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package dataset

import (
	"testing"
	"time"

	"github.com/tomtom215/marquee/internal/ranking"
)

func TestComputeAggregates(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	events := []ranking.Event{
		// Outside the 30 day window ending at base+40d.
		{UserID: "u1", ItemID: "a", Timestamp: base, Grade: ranking.GradeLongPlay, WatchMinutes: 100},
		{UserID: "u1", ItemID: "a", Timestamp: base.Add(20 * day), Grade: ranking.GradeLongPlay, WatchMinutes: 60},
		{UserID: "u1", ItemID: "b", Timestamp: base.Add(25 * day), Grade: ranking.GradeClick},
		{UserID: "u2", ItemID: "a", Timestamp: base.Add(30 * day), Grade: ranking.GradeShortPlay, WatchMinutes: 5},
		{UserID: "u2", ItemID: "c", Timestamp: base.Add(40 * day), Grade: ranking.GradeNone},
	}

	table := ComputeAggregates(events, 30)

	if want := base.Add(10 * day); !table.Cutoff.Equal(want) {
		t.Fatalf("Cutoff = %v, want %v", table.Cutoff, want)
	}

	tests := []struct {
		name string
		got  ranking.Aggregates
		want ranking.Aggregates
	}{
		{"user u1", table.Users["u1"], ranking.Aggregates{WatchMinutes: 60, Plays: 1, Clicks: 2, PlayRate: 1.0 / 3}},
		{"user u2", table.Users["u2"], ranking.Aggregates{WatchMinutes: 5, Plays: 1, Clicks: 1, PlayRate: 0.5}},
		{"item a", table.Items["a"], ranking.Aggregates{WatchMinutes: 65, Plays: 2, Clicks: 2, PlayRate: 2.0 / 3}},
		{"item c", table.Items["c"], ranking.Aggregates{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("aggregates = %+v, want %+v", tt.got, tt.want)
			}
		})
	}
}

func TestApplyAggregatesZeroFills(t *testing.T) {
	t.Parallel()

	table := ComputeAggregates([]ranking.Event{
		{UserID: "u1", ItemID: "a", Timestamp: base, Grade: ranking.GradeLongPlay, WatchMinutes: 30},
	}, 30)

	rows := []ranking.CandidateRow{
		{UserID: "u1", ItemID: "a"},
		{UserID: "new", ItemID: "unseen"},
	}
	table.Apply(rows)

	if rows[0].UserAgg.WatchMinutes != 30 || rows[0].ItemAgg.Plays != 1 {
		t.Errorf("row 0 aggregates = %+v / %+v", rows[0].UserAgg, rows[0].ItemAgg)
	}
	if rows[1].UserAgg != (ranking.Aggregates{}) || rows[1].ItemAgg != (ranking.Aggregates{}) {
		t.Errorf("row 1 aggregates not zero-filled: %+v / %+v", rows[1].UserAgg, rows[1].ItemAgg)
	}
}

func TestComputeAggregatesEmpty(t *testing.T) {
	t.Parallel()

	table := ComputeAggregates(nil, 30)
	if len(table.Users) != 0 || len(table.Items) != 0 {
		t.Errorf("empty input produced %d users / %d items", len(table.Users), len(table.Items))
	}
}
