// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package evaluate computes group-aware ranking quality metrics.
package evaluate

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/tomtom215/marquee/internal/ranking"
)

// Scored is one ranked row: its group, its true grade and the model score.
type Scored struct {
	Group ranking.GroupKey
	Grade ranking.Grade
	Score float64
}

// Report holds the mean per-group metrics.
type Report struct {
	NDCG      float64 `json:"ndcg"`
	MAP       float64 `json:"map"`
	NumGroups int     `json:"num_groups"`
	K         int     `json:"k"`
}

// Evaluate groups rows by (user, session), orders each group by score
// descending with ties broken by input order, and averages NDCG@k and AP@k
// over groups with equal weight.
func Evaluate(ctx context.Context, rows []Scored, k int) (Report, error) {
	if k < 1 {
		return Report{}, fmt.Errorf("k must be at least 1, got %d", k)
	}

	index := make(map[ranking.GroupKey]int)
	var groups [][]int
	for i := range rows {
		g, ok := index[rows[i].Group]
		if !ok {
			g = len(groups)
			index[rows[i].Group] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	report := Report{NumGroups: len(groups), K: k}
	if len(groups) == 0 {
		return report, nil
	}

	ndcg := make([]float64, len(groups))
	ap := make([]float64, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for g := range groups {
		g := g
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ranked := rankedGrades(rows, groups[g])
			ndcg[g] = NDCG(ranked, k)
			ap[g] = AveragePrecision(ranked, k)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	n := float64(len(groups))
	report.NDCG = floats.Sum(ndcg) / n
	report.MAP = floats.Sum(ap) / n
	return report, nil
}

func rankedGrades(rows []Scored, members []int) []ranking.Grade {
	order := append([]int(nil), members...)
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].Score > rows[order[b]].Score
	})
	grades := make([]ranking.Grade, len(order))
	for i, idx := range order {
		grades[i] = rows[idx].Grade
	}
	return grades
}

// DCG is sum over the first k ranks of (2^grade - 1) / log2(rank + 1).
func DCG(ranked []ranking.Grade, k int) float64 {
	var dcg float64
	for i := 0; i < len(ranked) && i < k; i++ {
		gain := math.Pow(2, float64(ranked[i])) - 1
		dcg += gain / math.Log2(float64(i+2))
	}
	return dcg
}

// NDCG normalizes DCG@k by the DCG@k of the ideal ordering. Groups with no
// positive grade score 0.
func NDCG(ranked []ranking.Grade, k int) float64 {
	ideal := append([]ranking.Grade(nil), ranked...)
	sort.Slice(ideal, func(a, b int) bool { return ideal[a] > ideal[b] })
	idcg := DCG(ideal, k)
	if idcg == 0 {
		return 0
	}
	return DCG(ranked, k) / idcg
}

// AveragePrecision averages precision@i over the relevant ranks i <= k,
// where grade >= 1 is relevant. It is 0 when nothing relevant is in the top k.
func AveragePrecision(ranked []ranking.Grade, k int) float64 {
	var hits, sum float64
	for i := 0; i < len(ranked) && i < k; i++ {
		if ranked[i] >= ranking.GradeClick {
			hits++
			sum += hits / float64(i+1)
		}
	}
	if hits == 0 {
		return 0
	}
	return sum / hits
}
