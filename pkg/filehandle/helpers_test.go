package filehandle

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestPath returns a path inside a per-test directory; the file does not exist yet.
func newTestPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data.txt")
}

// mustOpen creates a handle on path, opens it with intent and closes it on cleanup.
func mustOpen(t *testing.T, path string, intent Intent) *FileHandle {
	t.Helper()
	h := New(path, 0600)
	_, err := h.Open(intent)
	require.NoError(t, err, "Open should succeed")
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// mustWriteFile seeds path with content.
func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// mustReadFile reads path directly from disk.
func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// fixedResolver returns the same identity for every uid.
type fixedResolver struct {
	identity *Identity
	err      error
}

func (r fixedResolver) Resolve(uint32) (*Identity, error) {
	return r.identity, r.err
}

// recordingMetrics captures observations for assertions.
type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	failures   map[string]int
	bytes      map[string]int
	lockWaits  map[LockState]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		operations: make(map[string]int),
		failures:   make(map[string]int),
		bytes:      make(map[string]int),
		lockWaits:  make(map[LockState]int),
	}
}

func (m *recordingMetrics) RecordOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op]++
	if err != nil {
		m.failures[op]++
	}
}

func (m *recordingMetrics) RecordBytes(direction string, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += bytes
}

func (m *recordingMetrics) RecordLockWait(mode LockState, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockWaits[mode]++
}
