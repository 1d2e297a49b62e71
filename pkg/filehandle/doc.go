// Package filehandle provides a file handle with bounded reads and writes,
// whole-file advisory locking and permission/ownership helpers.
//
// # Overview
//
// A FileHandle is bound to a path at construction and performs no I/O until
// it is opened. It tracks three pieces of state:
//
//	FileHandle
//	├── descriptor  (*os.File)   nil when closed
//	├── intent      (Intent)     none | read | write | read-write
//	└── lock        (LockState)  unlocked | shared | exclusive
//
// # Usage
//
//	h := filehandle.New("test.txt", 0644)
//	if _, err := h.Open(filehandle.IntentReadWrite); err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	if err := h.LockExclusive(); err != nil {
//	    return err
//	}
//	if _, err := h.Write([]byte("hello"), 0, 0); err != nil {
//	    return err
//	}
//	return h.Unlock()
//
// # Explicit Open
//
// Reads, writes and locks require an open descriptor whose intent allows the
// operation. A closed handle fails with KindNotOpen, a read on a write-only
// descriptor fails with KindWrongIntent. Nothing reopens the descriptor behind
// the caller's back; EnsureOpen is the only implicit-open convenience and it
// never reopens an already open handle.
//
// # Locking
//
// Locks use flock(2): they are advisory, cover the whole file and belong to
// the open descriptor. Two handles on the same path conflict whether they
// live in the same process or not. Blocking requests wait without timeout;
// TryLockShared/TryLockExclusive return an error wrapping ErrWouldBlock
// instead. Timeouts and retries are left to callers (see pkg/lockwait).
//
// # Errors
//
// Every failure is a *Error carrying a Kind, the failing operation, the path
// and the OS cause. Use IsKind, errors.Is with the exported sentinels, or
// (*Error).Code for the errno.
//
// # Thread Safety
//
// A FileHandle is not safe for concurrent use. Size queries used to clamp
// reads and to find the append offset are separate fstat calls; hold the
// appropriate lock across the query and the I/O (ReadLocked, AppendLocked)
// when other writers may be active.
package filehandle
