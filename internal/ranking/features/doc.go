// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package features turns raw categorical and numeric fields into a fixed
// numeric schema.
//
// An Encoder is fit once on the training partition and is immutable after
// that. Fit freezes two things:
//
//   - a vocabulary per categorical field, sorted lexicographically
//   - the column order: one indicator column per vocabulary value, named
//     "field=value", for each categorical field in field order, followed by
//     the numeric fields in input order
//
// Encode expands a batch of records into indicator columns for the values the
// batch contains and then Aligns the result to the frozen columns. Alignment
// drops columns the schema does not know (unseen category values therefore
// contribute nothing) and zero-fills columns the batch lacks. Aligning an
// already aligned matrix returns the same values.
//
// The same Encoder, rebuilt from registry metadata with FromSchema, encodes
// validation, test and online requests.
package features
