// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package ranking holds the domain model shared by the learning-to-rank
// pipeline and the online scorer.
//
// # Data Flow
//
// Offline, raw engagement events are turned into a graded, listwise training
// set and a ranker is fit on it:
//
//	events -> sampling.EstimatePopularity -> sampling.Sampler
//	       -> dataset.Builder -> split -> features.Fit/Encode
//	       -> ranker.Fit -> evaluate.Evaluate -> registry.Save
//
// Online, online.Scorer rebuilds CandidateRow values for a request, encodes
// them with the encoder frozen at training time and scores them with the
// trained model.
//
// # Groups
//
// A group is every CandidateRow sharing a (user_id, session_id) pair. Groups
// are the unit of training and evaluation; rows of one group must stay in a
// single partition and be contiguous when handed to a ranker.
//
// # Feature Derivation
//
// CandidateRow.Record is the only conversion from domain rows to encoder
// input. Context flags (prime time, weekend) and cross features (item age,
// kids mismatch) are derived by DeriveContext and DeriveCross, which both the
// dataset builder and the online scorer call.
//
// # Errors
//
// Every failure kind is a sentinel in this package. Sub-packages wrap them
// with fmt.Errorf and callers match with errors.Is.
package ranking
