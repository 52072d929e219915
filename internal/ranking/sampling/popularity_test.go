// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package sampling

import (
	"math"
	"testing"

	"github.com/tomtom215/marquee/internal/ranking"
)

func events(pairs ...any) []ranking.Event {
	var out []ranking.Event
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, ranking.Event{
			UserID: "u1",
			ItemID: pairs[i].(string),
			Grade:  ranking.Grade(pairs[i+1].(int)),
		})
	}
	return out
}

func TestEstimatePopularity(t *testing.T) {
	t.Parallel()

	pop := EstimatePopularity(events("a", 3, "b", 1, "a", 2, "c", 0, "d", 4))

	tests := []struct {
		item string
		want float64
	}{
		{"a", 0.5},
		{"d", 0.4},
		{"b", 0.1},
		{"c", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := pop.Weight(tt.item); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Weight(%q) = %v, want %v", tt.item, got, tt.want)
		}
	}

	if pop.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (zero-weight items are absent)", pop.Len())
	}

	var sum float64
	items := pop.Items()
	for _, e := range items {
		sum += e.Weight
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
	if items[0].ItemID != "a" || items[1].ItemID != "d" || items[2].ItemID != "b" {
		t.Errorf("Items() order = %v, want a, d, b", items)
	}
}

func TestEstimatePopularityClipsNegativeGrades(t *testing.T) {
	t.Parallel()

	pop := EstimatePopularity(events("a", -2, "b", 1))
	if pop.Weight("a") != 0 || pop.Weight("b") != 1 {
		t.Errorf("negative grades must be clipped: a=%v b=%v", pop.Weight("a"), pop.Weight("b"))
	}
}

func TestEstimatePopularityDeterministic(t *testing.T) {
	t.Parallel()

	ev := events("x", 1, "y", 1, "z", 1, "w", 2)
	first := EstimatePopularity(ev).Items()
	for i := 0; i < 20; i++ {
		again := EstimatePopularity(ev).Items()
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d differs at %d: %v vs %v", i, j, first[j], again[j])
			}
		}
	}
}

func TestEstimatePopularityEmpty(t *testing.T) {
	t.Parallel()

	pop := EstimatePopularity(nil)
	if pop.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pop.Len())
	}
	var nilPop *Popularity
	if nilPop.Weight("a") != 0 || nilPop.Items() != nil {
		t.Error("nil popularity should behave as empty")
	}
}
