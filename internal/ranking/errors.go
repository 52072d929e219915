// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranking

import "errors"

var (
	// ErrInvalidFractions indicates split fractions that are negative or do not sum to 1.
	ErrInvalidFractions = errors.New("split fractions must be non-negative and sum to 1.0")

	// ErrSamplingExhausted indicates the sampler could not find enough distinct non-history items.
	ErrSamplingExhausted = errors.New("negative sampling exhausted")

	// ErrMissingPopularityTable indicates popularity sampling without a fitted popularity vector.
	ErrMissingPopularityTable = errors.New("popularity strategy requires a fitted popularity table")

	// ErrUnknownStrategy indicates an unsupported sampling or split strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrJoinIntegrity indicates an event that references a user or item missing from the catalog.
	ErrJoinIntegrity = errors.New("join integrity violation")

	// ErrUnknownUser indicates a ranking request for a user absent from the catalog.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUnknownItem indicates a ranking request with a candidate absent from the catalog.
	ErrUnknownItem = errors.New("unknown item")

	// ErrEmptyCandidateSet indicates a ranking request with no candidates.
	ErrEmptyCandidateSet = errors.New("empty candidate set")

	// ErrInvalidGroupSizes indicates group sizes that do not partition the training rows.
	ErrInvalidGroupSizes = errors.New("group sizes do not match row count")

	// ErrNotTrained indicates that no trained model is available.
	ErrNotTrained = errors.New("no trained model available")
)
