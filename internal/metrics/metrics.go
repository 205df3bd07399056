// Package metrics exposes the agent's Prometheus instrumentation, following
// the teacher's promauto-on-a-custom-registry pattern (pkg/metrics/prometheus).
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	enabled  bool
	initOnce sync.Once

	filesDetected    *prometheus.CounterVec
	recordsValidated *prometheus.CounterVec
	batchesFlushed   prometheus.Counter
	batchFlushBytes  prometheus.Histogram
	uploadAttempts   *prometheus.CounterVec
	uploadDuration   prometheus.Histogram
	retentionActions *prometheus.CounterVec
	connState        prometheus.Gauge
)

// InitRegistry builds the process's metrics registry and registers every
// collector. Safe to call once; subsequent calls are no-ops.
func InitRegistry() {
	initOnce.Do(func() {
		enabled = true
		registry = prometheus.NewRegistry()

		filesDetected = promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgelogd_files_detected_total",
				Help: "Total number of files observed by the directory watcher, by extension.",
			},
			[]string{"extension"},
		)

		recordsValidated = promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgelogd_records_validated_total",
				Help: "Total number of JSONL records validated, by outcome.",
			},
			[]string{"outcome"}, // "valid", "invalid"
		)

		batchesFlushed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "edgelogd_batches_flushed_total",
			Help: "Total number of batches flushed by the batch processor.",
		})

		batchFlushBytes = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "edgelogd_batch_flush_bytes",
			Help:    "Distribution of flushed batch sizes in bytes.",
			Buckets: []float64{1024, 8192, 65536, 262144, 1048576, 4194304, 10485760},
		})

		uploadAttempts = promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgelogd_upload_attempts_total",
				Help: "Total number of upload attempts, by outcome.",
			},
			[]string{"outcome"}, // "success", "retry", "failure"
		)

		uploadDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "edgelogd_upload_duration_milliseconds",
			Help:    "Duration of successful file uploads in milliseconds.",
			Buckets: []float64{50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		})

		retentionActions = promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgelogd_retention_actions_total",
				Help: "Total number of retention actions taken, by kind.",
			},
			[]string{"action"}, // "compress", "archive", "delete", "emergency_delete"
		)

		connState = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "edgelogd_upload_connection_state",
			Help: "Upload client connection state as an enumerated value (0=Disconnected..5=Disabled).",
		})
	})
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool { return enabled }

// Handler returns the HTTP handler to mount at the metrics server's scrape
// endpoint. Returns nil if InitRegistry was never called.
func Handler() http.Handler {
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordFileDetected increments the files-detected counter for extension.
func RecordFileDetected(extension string) {
	if !enabled {
		return
	}
	filesDetected.WithLabelValues(extension).Inc()
}

// RecordValidation increments the records-validated counter for outcome
// ("valid" or "invalid").
func RecordValidation(outcome string) {
	if !enabled {
		return
	}
	recordsValidated.WithLabelValues(outcome).Inc()
}

// RecordBatchFlush records one flushed batch's size.
func RecordBatchFlush(sizeBytes int64) {
	if !enabled {
		return
	}
	batchesFlushed.Inc()
	batchFlushBytes.Observe(float64(sizeBytes))
}

// RecordUploadAttempt increments the upload-attempts counter for outcome.
func RecordUploadAttempt(outcome string) {
	if !enabled {
		return
	}
	uploadAttempts.WithLabelValues(outcome).Inc()
}

// RecordUploadDuration records a successful upload's wall-clock duration.
func RecordUploadDuration(d time.Duration) {
	if !enabled {
		return
	}
	uploadDuration.Observe(float64(d.Milliseconds()))
}

// RecordRetentionAction increments the retention-actions counter for action.
func RecordRetentionAction(action string) {
	if !enabled {
		return
	}
	retentionActions.WithLabelValues(action).Inc()
}

// SetConnectionState sets the connection-state gauge to an ordinal value.
func SetConnectionState(ordinal float64) {
	if !enabled {
		return
	}
	connState.Set(ordinal)
}
