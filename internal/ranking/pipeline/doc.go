// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package pipeline runs one end-to-end training pass.

A run moves through fixed stages, each timed and logged under the run id:

	load        CSV into DuckDB (optional), then read users, items, events
	build       popularity, negative sampling, candidate rows
	aggregates  windowed user and item counters joined onto rows
	split       train / validation / test, regrouped contiguously
	encode      encoder fit on train, applied to all partitions
	fit         ranker training with early stopping on validation
	evaluate    NDCG@k and MAP@k on validation and test
	save        registry version, then pruning
	featurestore  aggregates for online scoring
	export      Parquet partitions and metrics.json (optional)
	publish     model-published event (optional, never fails the run)

Only one run executes at a time per Trainer.
*/
package pipeline
