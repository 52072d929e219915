// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package sampling

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/tomtom215/marquee/internal/ranking"
)

// Strategy selects the negative sampling distribution.
type Strategy string

const (
	// StrategyUniform draws uniformly from the catalog.
	StrategyUniform Strategy = "uniform"
	// StrategyPopularity draws proportionally to the popularity vector.
	StrategyPopularity Strategy = "popularity"
)

// DefaultMaxRetriesFactor bounds rejection sampling at factor*n draws.
const DefaultMaxRetriesFactor = 50

// minDrawBudget keeps tiny requests from failing on a short unlucky streak.
const minDrawBudget = 100

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyUniform, StrategyPopularity:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("%w: sampling strategy %q", ranking.ErrUnknownStrategy, name)
	}
}

// Config configures a Sampler.
type Config struct {
	Strategy Strategy

	// MaxRetriesFactor caps draws per Sample call at MaxRetriesFactor*n.
	// Default: 50
	MaxRetriesFactor int
}

// Sampler draws negative items. It holds only immutable state after
// construction and is safe for concurrent use; each caller supplies its own
// random source.
type Sampler struct {
	strategy     Strategy
	retryFactor  int
	items        []string
	popItems     []string
	cumulative   []float64
	hasPopTable  bool
	totalPopMass float64
}

// NewSampler builds a sampler over the catalog items. pop may be nil; the
// popularity strategy then fails at Sample time with ErrMissingPopularityTable.
// Popularity entries for items outside the catalog are ignored.
func NewSampler(cfg Config, catalogItems []string, pop *Popularity) (*Sampler, error) {
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}
	if cfg.MaxRetriesFactor <= 0 {
		cfg.MaxRetriesFactor = DefaultMaxRetriesFactor
	}

	items := append([]string(nil), catalogItems...)
	sort.Strings(items)

	s := &Sampler{
		strategy:    cfg.Strategy,
		retryFactor: cfg.MaxRetriesFactor,
		items:       items,
	}

	if pop != nil {
		s.hasPopTable = true
		inCatalog := make(map[string]struct{}, len(items))
		for _, id := range items {
			inCatalog[id] = struct{}{}
		}
		for _, e := range pop.entries {
			if _, ok := inCatalog[e.ItemID]; !ok {
				continue
			}
			s.totalPopMass += e.Weight
			s.popItems = append(s.popItems, e.ItemID)
			s.cumulative = append(s.cumulative, s.totalPopMass)
		}
	}
	return s, nil
}

// Strategy returns the configured strategy.
func (s *Sampler) Strategy() Strategy {
	return s.strategy
}

// Sample returns exactly n distinct items that are not in history.
//
// n <= 0 returns an empty slice without touching rng. When fewer than n
// eligible items exist, or the draw budget runs out, Sample fails with
// ErrSamplingExhausted.
func (s *Sampler) Sample(history map[string]struct{}, n int, rng *rand.Rand) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	if s.strategy == StrategyPopularity && !s.hasPopTable {
		return nil, ranking.ErrMissingPopularityTable
	}

	pool := s.items
	if s.strategy == StrategyPopularity {
		pool = s.popItems
	}
	eligible := 0
	for _, id := range pool {
		if _, seen := history[id]; !seen {
			eligible++
		}
	}
	if eligible < n {
		return nil, fmt.Errorf("%w: need %d items, only %d eligible", ranking.ErrSamplingExhausted, n, eligible)
	}

	budget := s.retryFactor * n
	if budget < minDrawBudget {
		budget = minDrawBudget
	}

	out := make([]string, 0, n)
	picked := make(map[string]struct{}, n)
	for draws := 0; len(out) < n; draws++ {
		if draws >= budget {
			return nil, fmt.Errorf("%w: drew %d of %d items in %d draws", ranking.ErrSamplingExhausted, len(out), n, budget)
		}
		id := s.draw(rng)
		if _, seen := history[id]; seen {
			continue
		}
		if _, dup := picked[id]; dup {
			continue
		}
		picked[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (s *Sampler) draw(rng *rand.Rand) string {
	if s.strategy == StrategyUniform {
		return s.items[rng.Intn(len(s.items))]
	}
	target := rng.Float64() * s.totalPopMass
	i := sort.SearchFloat64s(s.cumulative, target)
	if i >= len(s.popItems) {
		i = len(s.popItems) - 1
	}
	return s.popItems[i]
}
