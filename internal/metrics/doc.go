// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
are exposed at /metrics by the API router:

	curl http://localhost:8080/metrics

# Available Metrics

Training Pipeline:
  - marquee_training_runs_total: Training runs (counter)
    Labels: result (success, failure)
  - marquee_training_duration_seconds: End-to-end run time (histogram)
  - marquee_training_stage_duration_seconds: Per-stage time (histogram)
    Labels: stage (load, build, split, encode, fit, evaluate, publish)
  - marquee_dataset_rows: Rows in the last built dataset (gauge)
    Labels: partition (all, train, val, test)
  - marquee_model_quality: Last evaluation result (gauge)
    Labels: partition (val, test), metric (ndcg, map)
  - marquee_model_version: Version served by the online scorer (gauge)

Online Scoring:
  - marquee_rank_requests_total: Rank calls (counter)
    Labels: result (success, unknown_user, unknown_item, empty, not_trained, error)
  - marquee_rank_duration_seconds: Rank latency (histogram)
  - marquee_rank_candidates: Candidate set size (histogram)
  - marquee_featurestore_fallbacks_total: Lookups served as zero-filled aggregates (counter)
    Labels: reason (error, breaker_open, missing)

Events:
  - marquee_events_total: Model lifecycle events (counter)
    Labels: topic, direction (publish, consume), result

HTTP API:
  - api_requests_total, api_request_duration_seconds, api_active_requests,
    api_rate_limit_hits_total

Database:
  - duckdb_query_duration_seconds, duckdb_query_errors_total

Circuit Breaker:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Labels name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: Labels name, from_state, to_state
*/
package metrics
