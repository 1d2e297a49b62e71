package filehandle

import (
	"errors"
	"io"
	"slices"
	"time"
)

// Read returns up to length bytes starting at start.
//
// Range policy:
//   - an empty file yields an empty (non-nil) slice and no error
//   - a negative start is treated as 0
//   - a start at or beyond end-of-file is clamped to size-1
//   - length <= 0, or a range running past end-of-file, reads to end-of-file
//
// Reads are positional (pread): the descriptor offset is neither used nor
// moved. A short read, which only happens if the file shrinks concurrently,
// succeeds with the bytes actually read.
//
// The size used for clamping comes from a separate fstat. Hold a shared lock
// (or use ReadLocked) if other writers may change the size in between.
//
// Parameters:
//   - start: Byte offset to read from
//   - length: Number of bytes to read, 0 for "to end of file"
//
// Returns:
//   - []byte: The bytes read; nil on failure
//   - error: KindNotOpen, KindWrongIntent, KindStat or KindRead
func (h *FileHandle) Read(start, length int64) ([]byte, error) {
	began := time.Now()
	data, err := h.read(start, length)
	h.metrics.RecordOperation("read", time.Since(began), err)
	if err == nil {
		h.metrics.RecordBytes("read", len(data))
	}
	return data, err
}

func (h *FileHandle) read(start, length int64) ([]byte, error) {
	if err := h.requireOpen("read", IntentRead); err != nil {
		return nil, err
	}

	size, err := h.Size()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return []byte{}, nil
	}

	start, length = clampRange(size, start, length)

	buf := make([]byte, length)
	n, err := h.file.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, h.newError(KindRead, "pread", cause(err))
	}

	return slices.Clip(buf[:n]), nil
}

// ReadLocked takes a shared lock, reads, then releases the lock.
//
// The lock is released before returning even when the read fails. If the
// handle already holds a shared or exclusive lock, it is reused and kept.
// When only the release fails, the data read is returned together with the
// KindLock error.
func (h *FileHandle) ReadLocked(start, length int64) ([]byte, error) {
	if err := h.requireOpen("read", IntentRead); err != nil {
		return nil, err
	}

	var data []byte
	err := h.withLock(Shared, func() error {
		var readErr error
		data, readErr = h.Read(start, length)
		return readErr
	})
	return data, err
}

// clampRange applies the bounded read policy to a non-empty file.
func clampRange(size, start, length int64) (int64, int64) {
	if start < 0 {
		start = 0
	}
	if start >= size {
		start = size - 1
	}

	remaining := size - start
	if length <= 0 || length > remaining {
		length = remaining
	}
	return start, length
}
