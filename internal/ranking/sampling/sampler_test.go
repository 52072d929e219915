// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package sampling

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tomtom215/marquee/internal/ranking"
)

// countingSource counts how often the random source is consulted.
type countingSource struct {
	rand.Source
	calls int
}

func (c *countingSource) Int63() int64 {
	c.calls++
	return c.Source.Int63()
}

func catalogItems(n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("i%03d", i)
	}
	return items
}

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	if s, err := ParseStrategy("uniform"); err != nil || s != StrategyUniform {
		t.Errorf("ParseStrategy(uniform) = %v, %v", s, err)
	}
	if _, err := ParseStrategy("hard-negative"); !errors.Is(err, ranking.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
	if _, err := NewSampler(Config{Strategy: "bogus"}, catalogItems(3), nil); !errors.Is(err, ranking.ErrUnknownStrategy) {
		t.Errorf("NewSampler with bogus strategy: %v", err)
	}
}

func TestSampleZeroDoesNotTouchRandomSource(t *testing.T) {
	t.Parallel()

	s, err := NewSampler(Config{Strategy: StrategyUniform}, catalogItems(10), nil)
	if err != nil {
		t.Fatal(err)
	}

	src := &countingSource{Source: rand.NewSource(1)}
	rng := rand.New(src)
	for _, n := range []int{0, -3} {
		got, err := s.Sample(nil, n, rng)
		if err != nil {
			t.Fatalf("Sample(n=%d) error = %v", n, err)
		}
		if len(got) != 0 {
			t.Errorf("Sample(n=%d) = %v, want empty", n, got)
		}
	}
	if src.calls != 0 {
		t.Errorf("random source consulted %d times, want 0", src.calls)
	}
}

func TestSampleExcludesHistory(t *testing.T) {
	t.Parallel()

	items := catalogItems(20)
	history := set(items[:10]...)

	for _, strategy := range []Strategy{StrategyUniform, StrategyPopularity} {
		t.Run(string(strategy), func(t *testing.T) {
			var ev []ranking.Event
			for i, id := range items {
				ev = append(ev, ranking.Event{ItemID: id, Grade: ranking.Grade(1 + i%3)})
			}
			s, err := NewSampler(Config{Strategy: strategy}, items, EstimatePopularity(ev))
			if err != nil {
				t.Fatal(err)
			}

			rng := rand.New(rand.NewSource(7))
			for trial := 0; trial < 200; trial++ {
				got, err := s.Sample(history, 10, rng)
				if err != nil {
					t.Fatalf("trial %d: %v", trial, err)
				}
				if len(got) != 10 {
					t.Fatalf("len = %d, want 10", len(got))
				}
				seen := make(map[string]bool)
				for _, id := range got {
					if _, inHistory := history[id]; inHistory {
						t.Fatalf("sampled history item %s", id)
					}
					if seen[id] {
						t.Fatalf("duplicate item %s in %v", id, got)
					}
					seen[id] = true
				}
			}
		})
	}
}

func TestSampleDeterministicForSeed(t *testing.T) {
	t.Parallel()

	s, err := NewSampler(Config{Strategy: StrategyUniform}, catalogItems(50), nil)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.Sample(set("i001"), 5, rand.New(rand.NewSource(99)))
	b, _ := s.Sample(set("i001"), 5, rand.New(rand.NewSource(99)))
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Errorf("same seed produced %v and %v", a, b)
	}
}

func TestSampleExhausted(t *testing.T) {
	t.Parallel()

	items := catalogItems(5)
	s, err := NewSampler(Config{Strategy: StrategyUniform}, items, nil)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(1))
	if _, err := s.Sample(set(items...), 1, rng); !errors.Is(err, ranking.ErrSamplingExhausted) {
		t.Errorf("all items in history: got %v, want ErrSamplingExhausted", err)
	}
	if _, err := s.Sample(set(items[:3]...), 3, rng); !errors.Is(err, ranking.ErrSamplingExhausted) {
		t.Errorf("pool smaller than n: got %v, want ErrSamplingExhausted", err)
	}
	got, err := s.Sample(set(items[:3]...), 2, rng)
	if err != nil || len(got) != 2 {
		t.Errorf("exact fit: got %v, %v", got, err)
	}

	empty, err := NewSampler(Config{Strategy: StrategyUniform}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := empty.Sample(nil, 1, rng); !errors.Is(err, ranking.ErrSamplingExhausted) {
		t.Errorf("empty catalog: got %v, want ErrSamplingExhausted", err)
	}
}

func TestSampleBoundedRetries(t *testing.T) {
	t.Parallel()

	// One eligible item carrying almost no popularity mass: the budget runs out.
	items := []string{"heavy", "light"}
	pop := &Popularity{
		entries: []ItemWeight{{"heavy", 1 - 1e-12}, {"light", 1e-12}},
		index:   map[string]int{"heavy": 0, "light": 1},
	}
	s, err := NewSampler(Config{Strategy: StrategyPopularity, MaxRetriesFactor: 1}, items, pop)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Sample(set("heavy"), 1, rand.New(rand.NewSource(3)))
	if !errors.Is(err, ranking.ErrSamplingExhausted) {
		t.Errorf("got %v, want ErrSamplingExhausted", err)
	}
}

func TestSampleMissingPopularityTable(t *testing.T) {
	t.Parallel()

	s, err := NewSampler(Config{Strategy: StrategyPopularity}, catalogItems(5), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Sample(nil, 2, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ranking.ErrMissingPopularityTable) {
		t.Errorf("got %v, want ErrMissingPopularityTable", err)
	}
}

func TestPopularityIgnoresItemsOutsideCatalog(t *testing.T) {
	t.Parallel()

	pop := EstimatePopularity(events("ghost", 3, "i000", 1))
	s, err := NewSampler(Config{Strategy: StrategyPopularity}, []string{"i000", "i001"}, pop)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		got, err := s.Sample(nil, 1, rng)
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != "i000" {
			t.Fatalf("sampled %s, want only i000", got[0])
		}
	}
}

// TestPopularityFrequencies checks long-run draw frequencies against the
// popularity weights with a chi-square goodness-of-fit test.
func TestPopularityFrequencies(t *testing.T) {
	t.Parallel()

	ev := events("a", 3, "a", 2, "b", 3, "c", 1, "d", 1)
	pop := EstimatePopularity(ev)
	items := []string{"a", "b", "c", "d"}
	s, err := NewSampler(Config{Strategy: StrategyPopularity}, items, pop)
	if err != nil {
		t.Fatal(err)
	}

	const draws = 20000
	counts := make(map[string]int)
	rng := rand.New(rand.NewSource(2026))
	for i := 0; i < draws; i++ {
		got, err := s.Sample(nil, 1, rng)
		if err != nil {
			t.Fatal(err)
		}
		counts[got[0]]++
	}

	var chi2 float64
	for _, id := range items {
		expected := pop.Weight(id) * draws
		diff := float64(counts[id]) - expected
		chi2 += diff * diff / expected
	}
	dist := distuv.ChiSquared{K: float64(len(items) - 1)}
	pValue := 1 - dist.CDF(chi2)
	if pValue < 0.001 {
		t.Errorf("draw frequencies %v do not match weights (chi2=%.2f, p=%.5f)", counts, chi2, pValue)
	}
}
