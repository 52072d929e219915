// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranker

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/marquee/internal/ranking"
	"github.com/tomtom215/marquee/internal/ranking/evaluate"
)

// LinearRankerName identifies LinearRanker models in registry metadata.
const LinearRankerName = "linear_ranknet"

// LinearRanker learns a linear scoring function with the RankNet pairwise
// logistic loss. For every pair (i, j) in the same group with y_i > y_j it
// minimizes log(1 + exp(-(s_i - s_j))) by SGD with L2 decay. Inputs are
// standardized with train-set statistics that are stored in the model.
type LinearRanker struct{}

// NewLinearRanker returns the reference ranker.
func NewLinearRanker() *LinearRanker {
	return &LinearRanker{}
}

// Name implements Ranker.
func (r *LinearRanker) Name() string { return LinearRankerName }

// LinearModel is the fitted state of a LinearRanker. Fields are exported for
// gob encoding.
type LinearModel struct {
	Weights   []float64
	Mean      []float64
	Scale     []float64
	Iteration int
}

// BestIteration returns the 1-based epoch whose weights were kept.
func (m *LinearModel) BestIteration() int { return m.Iteration }

// Width returns the expected number of feature columns.
func (m *LinearModel) Width() int { return len(m.Weights) }

// Predict scores each row.
func (m *LinearModel) Predict(X [][]float64) ([]float64, error) {
	scores := make([]float64, len(X))
	buf := make([]float64, len(m.Weights))
	for i, row := range X {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("%w: row %d has %d columns, model expects %d", ErrFeatureWidth, i, len(row), len(m.Weights))
		}
		m.standardize(buf, row)
		scores[i] = floats.Dot(m.Weights, buf)
	}
	return scores, nil
}

func (m *LinearModel) standardize(dst, row []float64) {
	floats.SubTo(dst, row, m.Mean)
	floats.Div(dst, m.Scale)
}

type pair struct{ hi, lo int }

// Fit implements Ranker.
//
//nolint:gocritic // TrainSet is small (three slice headers)
func (r *LinearRanker) Fit(ctx context.Context, train TrainSet, valid *TrainSet, params Params) (Model, error) {
	if err := train.Validate(); err != nil {
		return nil, fmt.Errorf("train set: %w", err)
	}
	if len(train.X) == 0 {
		return nil, fmt.Errorf("train set is empty")
	}
	if valid != nil {
		if err := valid.Validate(); err != nil {
			return nil, fmt.Errorf("validation set: %w", err)
		}
		if len(valid.X) > 0 && valid.Width() != train.Width() {
			return nil, fmt.Errorf("%w: validation has %d columns, train has %d", ErrFeatureWidth, valid.Width(), train.Width())
		}
	}
	if params.Epochs < 1 {
		return nil, fmt.Errorf("epochs must be at least 1, got %d", params.Epochs)
	}
	if params.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", params.LearningRate)
	}
	if params.EvalK < 1 {
		params.EvalK = DefaultParams().EvalK
	}

	rng := rand.New(rand.NewSource(params.Seed)) //nolint:gosec // reproducible training, not security

	width := train.Width()
	model := &LinearModel{
		Weights: make([]float64, width),
		Mean:    make([]float64, width),
		Scale:   make([]float64, width),
	}
	fitScaling(model, train.X)

	xs := make([][]float64, len(train.X))
	for i, row := range train.X {
		xs[i] = make([]float64, width)
		model.standardize(xs[i], row)
	}

	pairs := buildPairs(train, params.MaxPairsPerGroup, rng)

	best := append([]float64(nil), model.Weights...)
	bestScore := math.Inf(-1)
	bestEpoch := 0
	diff := make([]float64, width)

	for epoch := 1; epoch <= params.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
		for _, p := range pairs {
			floats.SubTo(diff, xs[p.hi], xs[p.lo])
			margin := floats.Dot(model.Weights, diff)
			// d/dw log(1+exp(-m)) = -sigmoid(-m) * diff
			step := params.LearningRate * sigmoid(-margin)
			if params.L2 > 0 {
				floats.Scale(1-params.LearningRate*params.L2, model.Weights)
			}
			floats.AddScaled(model.Weights, step, diff)
		}

		if valid == nil || len(valid.X) == 0 {
			bestEpoch = epoch
			copy(best, model.Weights)
			continue
		}

		score, err := validationNDCG(model, valid, params.EvalK)
		if err != nil {
			return nil, err
		}
		if score > bestScore {
			bestScore = score
			bestEpoch = epoch
			copy(best, model.Weights)
		}
		if params.EarlyStoppingRounds > 0 && epoch-bestEpoch >= params.EarlyStoppingRounds {
			break
		}
	}

	model.Weights = best
	model.Iteration = bestEpoch
	return model, nil
}

func fitScaling(m *LinearModel, X [][]float64) {
	col := make([]float64, len(X))
	for j := range m.Mean {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		m.Mean[j] = mean
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.Scale[j] = std
	}
}

// buildPairs lists (higher, lower) label pairs within each group, capping
// each group at maxPerGroup pairs drawn without replacement.
func buildPairs(set TrainSet, maxPerGroup int, rng *rand.Rand) []pair {
	var out []pair
	start := 0
	for _, size := range set.GroupSizes {
		var group []pair
		for i := start; i < start+size; i++ {
			for j := i + 1; j < start+size; j++ {
				switch {
				case set.Y[i] > set.Y[j]:
					group = append(group, pair{hi: i, lo: j})
				case set.Y[j] > set.Y[i]:
					group = append(group, pair{hi: j, lo: i})
				}
			}
		}
		if maxPerGroup > 0 && len(group) > maxPerGroup {
			rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
			group = group[:maxPerGroup]
		}
		out = append(out, group...)
		start += size
	}
	return out
}

func validationNDCG(m *LinearModel, valid *TrainSet, k int) (float64, error) {
	scores, err := m.Predict(valid.X)
	if err != nil {
		return 0, err
	}
	var sum float64
	start := 0
	for _, size := range valid.GroupSizes {
		sum += evaluate.NDCG(rankGroup(scores[start:start+size], valid.Y[start:start+size]), k)
		start += size
	}
	return sum / float64(len(valid.GroupSizes)), nil
}

func rankGroup(scores, labels []float64) []ranking.Grade {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	grades := make([]ranking.Grade, len(idx))
	for i, k := range idx {
		grades[i] = ranking.Grade(labels[k])
	}
	return grades
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(&LinearModel{})
}
