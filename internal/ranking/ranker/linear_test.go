// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranker

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/tomtom215/marquee/internal/ranking"
)

// syntheticSet builds groups whose grade is a threshold of column 0 while
// column 1 is noise and column 2 is a large constant offset.
func syntheticSet(groups, size int, seed int64) TrainSet {
	rng := rand.New(rand.NewSource(seed))
	var set TrainSet
	for g := 0; g < groups; g++ {
		for i := 0; i < size; i++ {
			signal := rng.Float64()
			var grade float64
			switch {
			case signal > 0.8:
				grade = 3
			case signal > 0.6:
				grade = 2
			case signal > 0.4:
				grade = 1
			}
			set.X = append(set.X, []float64{signal, rng.Float64(), 2000})
			set.Y = append(set.Y, grade)
		}
		set.GroupSizes = append(set.GroupSizes, size)
	}
	return set
}

func testParams() Params {
	p := DefaultParams()
	p.Epochs = 40
	p.EarlyStoppingRounds = 10
	p.EvalK = 5
	return p
}

func TestLinearRankerLearnsSignal(t *testing.T) {
	t.Parallel()

	train := syntheticSet(60, 6, 1)
	valid := syntheticSet(20, 6, 2)

	model, err := NewLinearRanker().Fit(context.Background(), train, &valid, testParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	lm, ok := model.(*LinearModel)
	if !ok {
		t.Fatalf("Fit() returned %T, want *LinearModel", model)
	}
	if lm.Weights[0] <= math.Abs(lm.Weights[1]) {
		t.Errorf("weights = %v, want signal column to dominate", lm.Weights)
	}
	if lm.Scale[2] != 1 {
		t.Errorf("constant column scale = %v, want 1", lm.Scale[2])
	}

	ndcg, err := validationNDCG(lm, &valid, 5)
	if err != nil {
		t.Fatalf("validationNDCG() error = %v", err)
	}
	if ndcg < 0.9 {
		t.Errorf("validation NDCG = %v, want >= 0.9", ndcg)
	}

	if it := model.BestIteration(); it < 1 || it > testParams().Epochs {
		t.Errorf("BestIteration() = %d, want within [1, %d]", it, testParams().Epochs)
	}
}

func TestLinearRankerDeterministic(t *testing.T) {
	t.Parallel()

	train := syntheticSet(30, 5, 3)
	valid := syntheticSet(10, 5, 4)

	a, err := NewLinearRanker().Fit(context.Background(), train, &valid, testParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	b, err := NewLinearRanker().Fit(context.Background(), train, &valid, testParams())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	wa, wb := a.(*LinearModel).Weights, b.(*LinearModel).Weights
	for i := range wa {
		if wa[i] != wb[i] {
			t.Fatalf("weights differ at %d: %v vs %v", i, wa[i], wb[i])
		}
	}
	if a.BestIteration() != b.BestIteration() {
		t.Errorf("BestIteration differs: %d vs %d", a.BestIteration(), b.BestIteration())
	}
}

func TestLinearRankerWithoutValidation(t *testing.T) {
	t.Parallel()

	params := testParams()
	params.Epochs = 7

	model, err := NewLinearRanker().Fit(context.Background(), syntheticSet(5, 4, 5), nil, params)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if model.BestIteration() != 7 {
		t.Errorf("BestIteration() = %d, want 7", model.BestIteration())
	}
	if model.Width() != 3 {
		t.Errorf("Width() = %d, want 3", model.Width())
	}
}

func TestFitRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	good := syntheticSet(3, 4, 6)

	tests := []struct {
		name    string
		train   TrainSet
		valid   *TrainSet
		params  func(Params) Params
		wantErr error
	}{
		{
			name:    "sizes do not sum",
			train:   TrainSet{X: good.X, Y: good.Y, GroupSizes: []int{4, 4}},
			wantErr: ranking.ErrInvalidGroupSizes,
		},
		{
			name:    "zero size group",
			train:   TrainSet{X: good.X, Y: good.Y, GroupSizes: []int{4, 0, 8}},
			wantErr: ranking.ErrInvalidGroupSizes,
		},
		{
			name:    "validation width",
			train:   good,
			valid:   &TrainSet{X: [][]float64{{1}}, Y: []float64{1}, GroupSizes: []int{1}},
			wantErr: ErrFeatureWidth,
		},
		{
			name:   "zero epochs",
			train:  good,
			params: func(p Params) Params { p.Epochs = 0; return p },
		},
		{
			name:   "label count",
			train:  TrainSet{X: good.X, Y: good.Y[:3], GroupSizes: good.GroupSizes},
			params: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			params := testParams()
			if tt.params != nil {
				params = tt.params(params)
			}
			_, err := NewLinearRanker().Fit(context.Background(), tt.train, tt.valid, params)
			if err == nil {
				t.Fatal("Fit() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Fit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFitCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLinearRanker().Fit(ctx, syntheticSet(3, 3, 7), nil, testParams())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fit() error = %v, want context.Canceled", err)
	}
}

func TestPredictWidthMismatch(t *testing.T) {
	t.Parallel()

	m := &LinearModel{Weights: []float64{1, 2}, Mean: []float64{0, 0}, Scale: []float64{1, 1}}
	if _, err := m.Predict([][]float64{{1}}); !errors.Is(err, ErrFeatureWidth) {
		t.Errorf("Predict() error = %v, want ErrFeatureWidth", err)
	}

	scores, err := m.Predict([][]float64{{1, 1}, {0, 1}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if scores[0] != 3 || scores[1] != 2 {
		t.Errorf("Predict() = %v, want [3 2]", scores)
	}
}

func TestBuildPairsCap(t *testing.T) {
	t.Parallel()

	set := TrainSet{
		X:          make([][]float64, 6),
		Y:          []float64{3, 2, 1, 0, 0, 1},
		GroupSizes: []int{4, 2},
	}
	rng := rand.New(rand.NewSource(1))

	all := buildPairs(set, 0, rng)
	// Group 1: all 6 pairs differ; group 2: one pair.
	if len(all) != 7 {
		t.Fatalf("len(pairs) = %d, want 7", len(all))
	}
	for _, p := range all {
		if set.Y[p.hi] <= set.Y[p.lo] {
			t.Errorf("pair %+v is not ordered by label", p)
		}
	}

	capped := buildPairs(set, 2, rng)
	if len(capped) != 3 {
		t.Errorf("len(capped) = %d, want 3", len(capped))
	}
}
