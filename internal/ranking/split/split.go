// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package split partitions candidate rows into train, validation and test sets.

Row-level splits cut the row sequence directly and may fracture a
(user, session) group across partitions. Group-level splits cut the sequence
of distinct group keys and then place every row of a group into its group's
partition, so each group lives in exactly one partition.

Boundaries use integer truncation: n_train = int(n * train),
n_val = int(n * val) and the remainder goes to test.
*/
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/tomtom215/marquee/internal/ranking"
)

// Strategy selects how rows or groups are ordered before cutting.
type Strategy string

const (
	StrategyTime   Strategy = "time"
	StrategyRandom Strategy = "random"
)

// Level selects the unit that is cut.
type Level string

const (
	LevelGroup Level = "group"
	LevelRow   Level = "row"
)

const fractionTolerance = 1e-6

// Fractions are the train, validation and test shares.
type Fractions struct {
	Train float64
	Val   float64
	Test  float64
}

// Validate reports ErrInvalidFractions unless every share is non-negative
// and the shares sum to 1 within tolerance.
func (f Fractions) Validate() error {
	if f.Train < 0 || f.Val < 0 || f.Test < 0 {
		return fmt.Errorf("%w: negative fraction in %+v", ranking.ErrInvalidFractions, f)
	}
	if math.Abs(f.Train+f.Val+f.Test-1.0) > fractionTolerance {
		return fmt.Errorf("%w: %+v sums to %g", ranking.ErrInvalidFractions, f, f.Train+f.Val+f.Test)
	}
	return nil
}

func (f Fractions) bounds(n int) (trainEnd, valEnd int) {
	nTrain := int(float64(n) * f.Train)
	nVal := int(float64(n) * f.Val)
	trainEnd = nTrain
	valEnd = nTrain + nVal
	if valEnd > n {
		valEnd = n
	}
	return trainEnd, valEnd
}

// Options configures Split.
type Options struct {
	Strategy  Strategy
	Level     Level
	Fractions Fractions
	Seed      int64
}

// Result holds the three partitions.
type Result struct {
	Train []ranking.CandidateRow
	Val   []ranking.CandidateRow
	Test  []ranking.CandidateRow
}

// Split dispatches on strategy and level.
func Split(rows []ranking.CandidateRow, opts Options) (Result, error) {
	level := opts.Level
	if level == "" {
		level = LevelGroup
	}

	switch {
	case opts.Strategy == StrategyTime && level == LevelGroup:
		return GroupTimeSplit(rows, opts.Fractions)
	case opts.Strategy == StrategyTime && level == LevelRow:
		return TimeSplit(rows, opts.Fractions)
	case opts.Strategy == StrategyRandom && level == LevelGroup:
		return GroupRandomSplit(rows, opts.Fractions, opts.Seed)
	case opts.Strategy == StrategyRandom && level == LevelRow:
		return RandomSplit(rows, opts.Fractions, opts.Seed)
	default:
		return Result{}, fmt.Errorf("%w: split %q at level %q", ranking.ErrUnknownStrategy, opts.Strategy, level)
	}
}

// TimeSplit orders rows by timestamp (stable) and cuts by row count.
func TimeSplit(rows []ranking.CandidateRow, fr Fractions) (Result, error) {
	if err := fr.Validate(); err != nil {
		return Result{}, err
	}
	order := identity(len(rows))
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].Timestamp.Before(rows[order[b]].Timestamp)
	})
	return cutRows(rows, order, fr), nil
}

// RandomSplit shuffles rows with seed and cuts by row count.
func RandomSplit(rows []ranking.CandidateRow, fr Fractions, seed int64) (Result, error) {
	if err := fr.Validate(); err != nil {
		return Result{}, err
	}
	order := identity(len(rows))
	shuffle(order, seed)
	return cutRows(rows, order, fr), nil
}

// GroupTimeSplit orders groups by their earliest timestamp (ties by first
// appearance) and cuts by group count.
func GroupTimeSplit(rows []ranking.CandidateRow, fr Fractions) (Result, error) {
	if err := fr.Validate(); err != nil {
		return Result{}, err
	}
	keys, earliest := groupKeys(rows)
	sort.SliceStable(keys, func(a, b int) bool {
		return earliest[keys[a]].Before(earliest[keys[b]])
	})
	return cutGroups(rows, keys, fr), nil
}

// GroupRandomSplit shuffles distinct groups with seed and cuts by group count.
func GroupRandomSplit(rows []ranking.CandidateRow, fr Fractions, seed int64) (Result, error) {
	if err := fr.Validate(); err != nil {
		return Result{}, err
	}
	keys, _ := groupKeys(rows)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split, not security
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return cutGroups(rows, keys, fr), nil
}

// Contiguous reorders rows so each group is a contiguous block, groups in
// order of first appearance and rows within a group in input order. It
// returns the regrouped rows and the size of each block.
func Contiguous(rows []ranking.CandidateRow) ([]ranking.CandidateRow, []int) {
	index := make(map[ranking.GroupKey]int)
	var members [][]int
	for i := range rows {
		key := rows[i].Group()
		g, ok := index[key]
		if !ok {
			g = len(members)
			index[key] = g
			members = append(members, nil)
		}
		members[g] = append(members[g], i)
	}

	out := make([]ranking.CandidateRow, 0, len(rows))
	sizes := make([]int, len(members))
	for g, idx := range members {
		sizes[g] = len(idx)
		for _, i := range idx {
			out = append(out, rows[i])
		}
	}
	return out, sizes
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func shuffle(order []int, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split, not security
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
}

func cutRows(rows []ranking.CandidateRow, order []int, fr Fractions) Result {
	trainEnd, valEnd := fr.bounds(len(order))
	pick := func(idx []int) []ranking.CandidateRow {
		out := make([]ranking.CandidateRow, len(idx))
		for i, j := range idx {
			out[i] = rows[j]
		}
		return out
	}
	return Result{
		Train: pick(order[:trainEnd]),
		Val:   pick(order[trainEnd:valEnd]),
		Test:  pick(order[valEnd:]),
	}
}

func groupKeys(rows []ranking.CandidateRow) ([]ranking.GroupKey, map[ranking.GroupKey]time.Time) {
	earliest := make(map[ranking.GroupKey]time.Time)
	var keys []ranking.GroupKey
	for i := range rows {
		key := rows[i].Group()
		ts, ok := earliest[key]
		if !ok {
			keys = append(keys, key)
			earliest[key] = rows[i].Timestamp
			continue
		}
		if rows[i].Timestamp.Before(ts) {
			earliest[key] = rows[i].Timestamp
		}
	}
	return keys, earliest
}

// cutGroups assigns partitions by position in keys and then emits rows in
// input order, so rows inside each partition keep their relative order.
func cutGroups(rows []ranking.CandidateRow, keys []ranking.GroupKey, fr Fractions) Result {
	trainEnd, valEnd := fr.bounds(len(keys))
	part := make(map[ranking.GroupKey]int, len(keys))
	for i, key := range keys {
		switch {
		case i < trainEnd:
			part[key] = 0
		case i < valEnd:
			part[key] = 1
		default:
			part[key] = 2
		}
	}

	var res Result
	for i := range rows {
		switch part[rows[i].Group()] {
		case 0:
			res.Train = append(res.Train, rows[i])
		case 1:
			res.Val = append(res.Val, rows[i])
		default:
			res.Test = append(res.Test, rows[i])
		}
	}
	return res
}
