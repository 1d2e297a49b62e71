package filehandle

import (
	"fmt"
	"syscall"
	"time"
)

// LineSeparator is prepended by AppendLine.
const LineSeparator = "\n"

// Write writes data at offset start and returns the number of bytes written.
//
// Writing past end-of-file is legal: the gap reads back as zero bytes
// (sparse region). Writes are positional (pwrite), so the descriptor offset
// is irrelevant.
//
// Parameters:
//   - data: Bytes to write
//   - start: Byte offset where writing begins; must not be negative
//   - length: Number of bytes of data to write; 0 (or more than len(data))
//     writes all of data
//
// Returns:
//   - int: Bytes actually written
//   - error: KindNotOpen, KindWrongIntent or KindWrite
func (h *FileHandle) Write(data []byte, start, length int64) (int, error) {
	began := time.Now()
	n, err := h.write(data, start, length)
	h.metrics.RecordOperation("write", time.Since(began), err)
	h.metrics.RecordBytes("write", n)
	return n, err
}

func (h *FileHandle) write(data []byte, start, length int64) (int, error) {
	if err := h.requireOpen("write", IntentWrite); err != nil {
		return 0, err
	}

	if start < 0 {
		return 0, h.newError(KindWrite, "pwrite", fmt.Errorf("negative offset %d: %w", start, syscall.EINVAL))
	}

	if length <= 0 || length > int64(len(data)) {
		length = int64(len(data))
	}

	n, err := h.file.WriteAt(data[:length], start)
	if err != nil {
		return n, h.newError(KindWrite, "pwrite", cause(err))
	}
	return n, nil
}

// WriteLocked takes an exclusive lock, writes, then releases the lock.
//
// The lock is released before returning even when the write fails. An
// exclusive lock already held by the handle is reused and kept; a shared one
// is released first and not restored.
func (h *FileHandle) WriteLocked(data []byte, start, length int64) (int, error) {
	if err := h.requireOpen("write", IntentWrite); err != nil {
		return 0, err
	}

	var n int
	err := h.withLock(Exclusive, func() error {
		var writeErr error
		n, writeErr = h.Write(data, start, length)
		return writeErr
	})
	return n, err
}

// Append writes data at the current end-of-file.
//
// The size is read with fstat right before the write. Concurrent appenders
// that do not hold an exclusive lock across both steps may overwrite each
// other; use AppendLocked for that.
func (h *FileHandle) Append(data []byte) (int, error) {
	if err := h.requireOpen("append", IntentWrite); err != nil {
		return 0, err
	}

	size, err := h.Size()
	if err != nil {
		return 0, err
	}
	return h.Write(data, size, 0)
}

// AppendLine appends LineSeparator followed by data.
func (h *FileHandle) AppendLine(data []byte) (int, error) {
	return h.Append(withLineSeparator(data))
}

// AppendLocked appends under an exclusive lock. The end-of-file offset is
// read after the lock is granted, so locking appenders never overlap.
func (h *FileHandle) AppendLocked(data []byte) (int, error) {
	if err := h.requireOpen("append", IntentWrite); err != nil {
		return 0, err
	}

	var n int
	err := h.withLock(Exclusive, func() error {
		var appendErr error
		n, appendErr = h.Append(data)
		return appendErr
	})
	return n, err
}

// AppendLineLocked is AppendLine under an exclusive lock.
func (h *FileHandle) AppendLineLocked(data []byte) (int, error) {
	return h.AppendLocked(withLineSeparator(data))
}

func withLineSeparator(data []byte) []byte {
	line := make([]byte, 0, len(LineSeparator)+len(data))
	line = append(line, LineSeparator...)
	return append(line, data...)
}
