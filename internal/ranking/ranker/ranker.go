// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package ranker defines the learning-to-rank model capability and provides
// a pairwise linear reference implementation.
//
// # Group Sizes
//
// Training data is listwise: X is ordered so that the rows of each
// (user, session) group are contiguous, and GroupSizes lists the row count
// of each block in order. The sizes must be positive and sum to len(X).
package ranker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/marquee/internal/ranking"
)

// ErrFeatureWidth is returned when a row does not match the model width.
var ErrFeatureWidth = errors.New("feature width mismatch")

// TrainSet is a grouped feature matrix with graded labels.
type TrainSet struct {
	X          [][]float64
	Y          []float64
	GroupSizes []int
}

// Validate checks shape and group sizes.
func (s *TrainSet) Validate() error {
	if len(s.X) != len(s.Y) {
		return fmt.Errorf("%d feature rows but %d labels", len(s.X), len(s.Y))
	}
	total := 0
	for i, n := range s.GroupSizes {
		if n <= 0 {
			return fmt.Errorf("%w: group %d has size %d", ranking.ErrInvalidGroupSizes, i, n)
		}
		total += n
	}
	if total != len(s.X) {
		return fmt.Errorf("%w: sizes sum to %d, rows = %d", ranking.ErrInvalidGroupSizes, total, len(s.X))
	}
	width := -1
	for i, row := range s.X {
		if width >= 0 && len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrFeatureWidth, i, len(row), width)
		}
		width = len(row)
	}
	return nil
}

// Width returns the column count, or 0 for an empty set.
func (s *TrainSet) Width() int {
	if len(s.X) == 0 {
		return 0
	}
	return len(s.X[0])
}

// Params are learner hyperparameters.
type Params struct {
	// Epochs is the maximum number of passes over the training pairs.
	Epochs int

	// LearningRate is the SGD step size.
	LearningRate float64

	// L2 is the weight decay applied on every update.
	L2 float64

	// EarlyStoppingRounds stops training after this many epochs without
	// validation improvement. 0 disables early stopping.
	EarlyStoppingRounds int

	// EvalK is the cutoff for the validation NDCG used by early stopping.
	EvalK int

	// MaxPairsPerGroup caps the training pairs drawn from one group.
	// 0 means no cap.
	MaxPairsPerGroup int

	// Seed makes pair sampling and shuffling reproducible.
	Seed int64
}

// DefaultParams returns the defaults used by the training pipeline.
func DefaultParams() Params {
	return Params{
		Epochs:              200,
		LearningRate:        0.05,
		L2:                  1e-4,
		EarlyStoppingRounds: 20,
		EvalK:               10,
		MaxPairsPerGroup:    64,
		Seed:                42,
	}
}

// Model scores encoded feature rows. Implementations must be safe for
// concurrent Predict calls.
type Model interface {
	Predict(X [][]float64) ([]float64, error)
	BestIteration() int
	Width() int
}

// Ranker fits a Model. valid may be nil, in which case no early stopping
// takes place and the final iteration is the best one.
type Ranker interface {
	Name() string
	Fit(ctx context.Context, train TrainSet, valid *TrainSet, params Params) (Model, error)
}
