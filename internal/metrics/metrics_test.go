// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramCount extracts the sample count of one labelled histogram series
func histogramCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	metric, ok := obs.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T is not a prometheus.Metric", obs)
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "events_test"))

	RecordDBQuery("SELECT", "events_test", 10*time.Millisecond, nil)
	RecordDBQuery("SELECT", "events_test", 5*time.Millisecond, errors.New("connection refused"))

	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("SELECT", "events_test")); got != before+1 {
		t.Errorf("DBQueryErrors = %v, want %v", got, before+1)
	}
}

func TestRecordTrainingRun(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("fit failed"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(TrainingRuns.WithLabelValues(tt.result))
			RecordTrainingRun(time.Second, tt.err)
			if got := testutil.ToFloat64(TrainingRuns.WithLabelValues(tt.result)); got != before+1 {
				t.Errorf("TrainingRuns{%s} = %v, want %v", tt.result, got, before+1)
			}
		})
	}
}

func TestRecordDatasetRowsAndQuality(t *testing.T) {
	RecordDatasetRows(100, 70, 15, 15)
	RecordModelQuality("val", 0.75, 0.5)

	if got := testutil.ToFloat64(DatasetRows.WithLabelValues("train")); got != 70 {
		t.Errorf("DatasetRows{train} = %v, want 70", got)
	}
	if got := testutil.ToFloat64(ModelQuality.WithLabelValues("val", "ndcg")); got != 0.75 {
		t.Errorf("ModelQuality{val,ndcg} = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(ModelQuality.WithLabelValues("val", "map")); got != 0.5 {
		t.Errorf("ModelQuality{val,map} = %v, want 0.5", got)
	}
}

func TestRecordRank(t *testing.T) {
	before := testutil.ToFloat64(RankRequests.WithLabelValues("unknown_user"))
	RecordRank("unknown_user", 0, time.Millisecond)
	RecordRank("success", 12, 2*time.Millisecond)

	if got := testutil.ToFloat64(RankRequests.WithLabelValues("unknown_user")); got != before+1 {
		t.Errorf("RankRequests{unknown_user} = %v, want %v", got, before+1)
	}
}

func TestRecordTrainingStage(t *testing.T) {
	before := histogramCount(t, TrainingStageDuration, "encode_test")
	RecordTrainingStage("encode_test", 250*time.Millisecond)
	RecordTrainingStage("encode_test", time.Second)

	if got := histogramCount(t, TrainingStageDuration, "encode_test"); got != before+2 {
		t.Errorf("TrainingStageDuration{encode_test} count = %d, want %d", got, before+2)
	}
}

// TestCircuitBreakerMetrics tests circuit breaker metric recording
func TestCircuitBreakerMetrics(t *testing.T) {
	name := "featurestore_test"

	RecordBreakerState(name, "closed", "open", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(name)); got != 2 {
		t.Errorf("CircuitBreakerState = %v, want 2", got)
	}
	RecordBreakerState(name, "open", "half-open", 1)
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues(name, "open", "half-open")); got != 1 {
		t.Errorf("transitions{open,half-open} = %v, want 1", got)
	}

	RecordBreakerRequest(name, "rejected")
	if got := testutil.ToFloat64(CircuitBreakerRequests.WithLabelValues(name, "rejected")); got != 1 {
		t.Errorf("CircuitBreakerRequests{rejected} = %v, want 1", got)
	}
}

func TestRecordEventAndFallback(t *testing.T) {
	RecordEvent("topic_test", "publish", nil)
	RecordEvent("topic_test", "publish", errors.New("nats down"))
	RecordFeatureStoreFallback("breaker_open")

	if got := testutil.ToFloat64(Events.WithLabelValues("topic_test", "publish", "failure")); got != 1 {
		t.Errorf("Events{failure} = %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("APIActiveRequests = %v, want %v", got, before)
	}
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)
	RecordTrainingStage("fit", time.Second)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
