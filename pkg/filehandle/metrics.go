package filehandle

import "time"

// Metrics provides observability for FileHandle operations.
//
// This is optional - if not provided, a no-op implementation is used.
// pkg/metrics ships a Prometheus-backed implementation.
type Metrics interface {
	// RecordOperation records a completed operation (e.g. "open", "read",
	// "write", "lock", "chmod") with its duration and outcome.
	RecordOperation(op string, duration time.Duration, err error)

	// RecordBytes records bytes transferred; direction is "read" or "write".
	RecordBytes(direction string, bytes int)

	// RecordLockWait records how long a lock request took to be granted or refused.
	RecordLockWait(mode LockState, duration time.Duration, err error)
}

// noopMetrics is the default no-op metrics implementation
type noopMetrics struct{}

func (noopMetrics) RecordOperation(op string, duration time.Duration, err error)     {}
func (noopMetrics) RecordBytes(direction string, bytes int)                          {}
func (noopMetrics) RecordLockWait(mode LockState, duration time.Duration, err error) {}
