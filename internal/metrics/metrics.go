// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// Training pipeline metrics
var (
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_training_runs_total",
			Help: "Total number of training pipeline runs",
		},
		[]string{"result"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_training_duration_seconds",
			Help:    "End-to-end training pipeline duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	TrainingStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_training_stage_duration_seconds",
			Help:    "Duration of each training pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)

	DatasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_dataset_rows",
			Help: "Number of candidate rows in the last built dataset",
		},
		[]string{"partition"},
	)

	ModelQuality = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_model_quality",
			Help: "Ranking quality of the last trained model",
		},
		[]string{"partition", "metric"},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_model_version",
			Help: "Registry version currently served by the online scorer",
		},
	)
)

// Online scoring metrics
var (
	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_rank_requests_total",
			Help: "Total number of online rank calls",
		},
		[]string{"result"},
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_rank_duration_seconds",
			Help:    "Online rank latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_rank_candidates",
			Help:    "Number of candidates per rank call",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	FeatureStoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_featurestore_fallbacks_total",
			Help: "Aggregate lookups served as zero-filled values",
		},
		[]string{"reason"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_events_total",
			Help: "Total number of model lifecycle events",
		},
		[]string{"topic", "direction", "result"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerState records a circuit breaker transition and its new state.
func RecordBreakerState(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordBreakerRequest records one call through a circuit breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordTrainingStage records the duration of one pipeline stage.
func RecordTrainingStage(stage string, duration time.Duration) {
	TrainingStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTrainingRun records a finished pipeline run.
func RecordTrainingRun(duration time.Duration, err error) {
	TrainingDuration.Observe(duration.Seconds())
	if err != nil {
		TrainingRuns.WithLabelValues("failure").Inc()
		return
	}
	TrainingRuns.WithLabelValues("success").Inc()
}

// RecordDatasetRows records partition sizes of the last dataset.
func RecordDatasetRows(all, train, val, test int) {
	DatasetRows.WithLabelValues("all").Set(float64(all))
	DatasetRows.WithLabelValues("train").Set(float64(train))
	DatasetRows.WithLabelValues("val").Set(float64(val))
	DatasetRows.WithLabelValues("test").Set(float64(test))
}

// RecordModelQuality records NDCG and MAP for one partition.
func RecordModelQuality(partition string, ndcg, mapK float64) {
	ModelQuality.WithLabelValues(partition, "ndcg").Set(ndcg)
	ModelQuality.WithLabelValues(partition, "map").Set(mapK)
}

// RecordRank records one online rank call.
func RecordRank(result string, candidates int, duration time.Duration) {
	RankRequests.WithLabelValues(result).Inc()
	RankDuration.Observe(duration.Seconds())
	if candidates > 0 {
		RankCandidates.Observe(float64(candidates))
	}
}

// RecordFeatureStoreFallback records a zero-filled aggregate lookup.
func RecordFeatureStoreFallback(reason string) {
	FeatureStoreFallbacks.WithLabelValues(reason).Inc()
}

// RecordEvent records a published or consumed lifecycle event.
func RecordEvent(topic, direction string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	Events.WithLabelValues(topic, direction, result).Inc()
}
