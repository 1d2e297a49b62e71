package filehandle

import (
	"errors"
	"time"

	"github.com/marmos91/filehandle/internal/logger"
)

// ============================================================================
// Advisory Lock State Machine
// ============================================================================
//
//	Unlocked --LockShared-->    Shared
//	Unlocked --LockExclusive--> Exclusive
//	Exclusive --LockShared-->   (release) --> Shared
//	Shared --LockExclusive-->   (release) --> Exclusive
//	any --Unlock-->             Unlocked
//
// Requesting the mode already held is a no-op. Switching modes releases the
// current lock before requesting the new one, so the two are never stacked;
// if the new request fails the handle is left Unlocked.
//
// Locks are advisory: they only order handles that also lock. A handle that
// writes without locking is never blocked by another handle's exclusive lock.

// LockShared blocks until a shared lock is granted.
//
// Fails with KindNotOpen if the handle is closed (no implicit open).
func (h *FileHandle) LockShared() error {
	return h.acquire(Shared, false)
}

// LockExclusive blocks until an exclusive lock is granted.
//
// Fails with KindNotOpen if the handle is closed (no implicit open).
func (h *FileHandle) LockExclusive() error {
	return h.acquire(Exclusive, false)
}

// TryLockShared requests a shared lock without blocking.
//
// When another handle holds an exclusive lock the returned KindLock error
// wraps ErrWouldBlock.
func (h *FileHandle) TryLockShared() error {
	return h.acquire(Shared, true)
}

// TryLockExclusive requests an exclusive lock without blocking.
//
// When another handle holds any lock the returned KindLock error wraps
// ErrWouldBlock.
func (h *FileHandle) TryLockExclusive() error {
	return h.acquire(Exclusive, true)
}

// Unlock releases the held lock. It is a no-op when nothing is held.
func (h *FileHandle) Unlock() error {
	if h.lock == Unlocked {
		return nil
	}

	start := time.Now()
	err := funlock(h.file)
	h.metrics.RecordOperation("unlock", time.Since(start), err)
	if err != nil {
		return h.newError(KindLock, "unlock", err)
	}

	logger.Debug("filehandle: released %s lock on %s", h.lock, h.path)
	h.lock = Unlocked
	return nil
}

func (h *FileHandle) acquire(mode LockState, nonBlocking bool) error {
	op := "lock"
	if nonBlocking {
		op = "trylock"
	}

	if err := h.requireOpen(op, IntentNone); err != nil {
		return err
	}

	if h.lock == mode {
		return nil
	}

	if h.lock != Unlocked {
		if err := h.Unlock(); err != nil {
			return err
		}
	}

	start := time.Now()
	err := flock(h.file, mode, nonBlocking)
	h.metrics.RecordLockWait(mode, time.Since(start), err)
	if err != nil {
		return h.newError(KindLock, op, err)
	}

	h.lock = mode
	logger.Debug("filehandle: acquired %s lock on %s", mode, h.path)
	return nil
}

// withLock runs fn while holding at least mode.
//
// A lock already held that covers mode (the same mode, or Exclusive) is
// reused and kept. Otherwise mode is acquired and released once fn returns,
// whatever fn's outcome; a weaker lock held before is not restored. When both
// fn and the release fail the errors are joined.
func (h *FileHandle) withLock(mode LockState, fn func() error) error {
	if h.lock == mode || h.lock == Exclusive {
		return fn()
	}

	if err := h.acquire(mode, false); err != nil {
		return err
	}

	opErr := fn()

	if err := h.Unlock(); err != nil {
		logger.Warn("filehandle: failed to release %s lock on %s: %v", mode, h.path, err)
		return errors.Join(opErr, err)
	}
	return opErr
}
