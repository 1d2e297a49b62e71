package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/filehandle/pkg/filehandle"
)

// Lock wait outcomes used as the "status" label of the lock wait histogram.
const (
	lockGranted   = "granted"
	lockContended = "contended"
	lockFailed    = "error"
)

// fileHandleMetrics is the Prometheus implementation of filehandle.Metrics.
//
// This implementation collects:
//   - Operation counts by operation and outcome
//   - Operation latencies by operation
//   - Bytes transferred by direction
//   - Time spent waiting for advisory locks by mode and outcome
type fileHandleMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	lockWait   *prometheus.HistogramVec
}

var (
	// shared is the instance registered on the global registry
	shared     *fileHandleMetrics
	sharedOnce sync.Once
)

// NewFileHandleMetrics returns the Prometheus-backed filehandle.Metrics
// registered on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes handles to use the built-in no-op implementation. The collectors are
// registered once; later calls return the same instance so that every handle
// in the process reports into the same series.
func NewFileHandleMetrics() filehandle.Metrics {
	if !IsEnabled() {
		return nil // Handles will use noopMetrics
	}

	sharedOnce.Do(func() {
		shared = newFileHandleMetrics(GetRegistry())
	})
	return shared
}

func newFileHandleMetrics(reg prometheus.Registerer) *fileHandleMetrics {
	return &fileHandleMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filehandle_operations_total",
				Help: "Total number of file handle operations",
			},
			[]string{"op", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filehandle_operation_duration_seconds",
				Help: "Duration of file handle operations in seconds",
				Buckets: []float64{
					0.00001, // 10µs
					0.00005, // 50µs
					0.0001,  // 100µs
					0.0005,  // 500µs
					0.001,   // 1ms
					0.005,   // 5ms
					0.01,    // 10ms
					0.05,    // 50ms
					0.1,     // 100ms
					0.5,     // 500ms
				},
			},
			[]string{"op"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filehandle_bytes_total",
				Help: "Total bytes transferred by file handles",
			},
			[]string{"direction"},
		),
		lockWait: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filehandle_lock_wait_seconds",
				Help: "Time spent waiting for advisory locks in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1,      // 1s
					5,      // 5s
					30,     // 30s
					120,    // 2m
				},
			},
			[]string{"mode", "status"},
		),
	}
}

// RecordOperation implements filehandle.Metrics.RecordOperation
func (m *fileHandleMetrics) RecordOperation(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordBytes implements filehandle.Metrics.RecordBytes
func (m *fileHandleMetrics) RecordBytes(direction string, bytes int) {
	if bytes <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordLockWait implements filehandle.Metrics.RecordLockWait
func (m *fileHandleMetrics) RecordLockWait(mode filehandle.LockState, duration time.Duration, err error) {
	m.lockWait.WithLabelValues(mode.String(), lockStatus(err)).Observe(duration.Seconds())
}

func lockStatus(err error) string {
	switch {
	case err == nil:
		return lockGranted
	case errors.Is(err, filehandle.ErrWouldBlock):
		return lockContended
	default:
		return lockFailed
	}
}
