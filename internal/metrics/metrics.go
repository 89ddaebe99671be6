// Package metrics exposes Prometheus instruments for import runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hrsync"

type metrics struct {
	runsTotal      *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	batchFailures  *prometheus.CounterVec
	classification *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	pendingRuns    prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Import runs that reached a terminal or gated status.",
		}, []string{"file_type", "status"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows written by the reconciling writer, by outcome.",
		}, []string{"file_type", "outcome"}),
		batchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Write batches rolled back.",
		}, []string{"file_type"}),
		classification: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structure_classification_total",
			Help:      "Structure diff outcomes per file type.",
		}, []string{"file_type", "classification"}),
		runDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from run start to its terminal status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"file_type", "status"}),
		pendingRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_runs",
			Help:      "Runs currently waiting at the approval gate.",
		}),
	}
})

// RunFinished counts a run that reached status and, for terminal statuses, observes its duration.
func RunFinished(fileType, status string, elapsed time.Duration) {
	m := metricsSingleton()
	m.runsTotal.WithLabelValues(fileType, status).Inc()
	if elapsed > 0 {
		m.runDuration.WithLabelValues(fileType, status).Observe(elapsed.Seconds())
	}
}

// RowsWritten adds n rows with outcome inserted, updated, unchanged or failed.
func RowsWritten(fileType, outcome string, n int) {
	if n <= 0 {
		return
	}
	metricsSingleton().rowsTotal.WithLabelValues(fileType, outcome).Add(float64(n))
}

// BatchFailed counts one rolled back batch.
func BatchFailed(fileType string) {
	metricsSingleton().batchFailures.WithLabelValues(fileType).Inc()
}

// Classified counts a structure diff outcome.
func Classified(fileType, classification string) {
	metricsSingleton().classification.WithLabelValues(fileType, classification).Inc()
}

// SetPendingRuns records how many runs wait for approval.
func SetPendingRuns(n int) {
	metricsSingleton().pendingRuns.Set(float64(n))
}
