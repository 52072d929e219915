// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package sampling estimates item popularity and draws negative items for the
// ranking dataset.
package sampling

import (
	"sort"

	"github.com/tomtom215/marquee/internal/ranking"
)

// ItemWeight is one entry of a popularity vector.
type ItemWeight struct {
	ItemID string  `json:"item_id"`
	Weight float64 `json:"weight"`
}

// Popularity is a normalized popularity vector. Weights of the listed items
// sum to 1. Items never engaged with are absent and carry weight 0.
type Popularity struct {
	entries []ItemWeight
	index   map[string]int
}

// EstimatePopularity sums max(grade, 0) per item and normalizes the totals.
// Items whose summed weight is zero are left out, so an event set without any
// positive grade yields an empty vector. The result is deterministic: entries
// are ordered by weight descending, then item id ascending.
func EstimatePopularity(events []ranking.Event) *Popularity {
	totals := make(map[string]float64)
	var sum float64
	for i := range events {
		w := float64(events[i].Grade)
		if w < 0 {
			w = 0
		}
		if w == 0 {
			continue
		}
		totals[events[i].ItemID] += w
		sum += w
	}

	entries := make([]ItemWeight, 0, len(totals))
	for id, w := range totals {
		entries = append(entries, ItemWeight{ItemID: id, Weight: w / sum})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].ItemID < entries[j].ItemID
	})

	p := &Popularity{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		p.index[e.ItemID] = i
	}
	return p
}

// Weight returns the normalized weight of an item, 0 when absent.
func (p *Popularity) Weight(itemID string) float64 {
	if p == nil {
		return 0
	}
	if i, ok := p.index[itemID]; ok {
		return p.entries[i].Weight
	}
	return 0
}

// Items returns a copy of the vector ordered by weight descending.
func (p *Popularity) Items() []ItemWeight {
	if p == nil {
		return nil
	}
	return append([]ItemWeight(nil), p.entries...)
}

// Len returns the number of items with non-zero weight.
func (p *Popularity) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}
