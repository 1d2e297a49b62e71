// Package lockwait implements caller-side strategies for acquiring advisory
// locks on a FileHandle.
//
// The FileHandle itself only offers two primitives per mode: a blocking
// request with no timeout and a single non-blocking attempt. Everything in
// between (giving up after a while, retrying at a bounded pace, honouring
// context cancellation) is built here on top of those primitives.
//
// Strategies:
//   - Blocking: wait for the lock as long as it takes
//   - Try:      one non-blocking attempt, ErrWouldBlock on contention
//   - Poller:   non-blocking attempts paced by a token bucket until the lock
//     is granted, the timeout expires or the context is cancelled
package lockwait

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/filehandle/pkg/filehandle"
)

// Strategy names accepted by configuration.
const (
	StrategyBlock = "block"
	StrategyTry   = "try"
	StrategyPoll  = "poll"
)

var (
	// ErrTimeout is returned by Poller when the lock was still contended
	// when its timeout expired. It wraps the last contention error.
	ErrTimeout = errors.New("timed out waiting for lock")

	// ErrInvalidMode is returned when asked to acquire filehandle.Unlocked or
	// an unknown mode.
	ErrInvalidMode = errors.New("invalid lock mode")
)

// Locker is the locking subset of *filehandle.FileHandle.
type Locker interface {
	LockShared() error
	LockExclusive() error
	TryLockShared() error
	TryLockExclusive() error
}

// Acquirer obtains a lock of the requested mode on a Locker.
type Acquirer interface {
	Acquire(ctx context.Context, l Locker, mode filehandle.LockState) error
}

// Blocking waits for the lock without a timeout.
//
// The context is checked before the request is issued. Once flock(2) is
// waiting it cannot be interrupted by the context; use Poller when the wait
// must be bounded.
type Blocking struct{}

// Acquire implements Acquirer.
func (Blocking) Acquire(ctx context.Context, l Locker, mode filehandle.LockState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return lock(l, mode, false)
}

// Try makes a single non-blocking attempt.
type Try struct{}

// Acquire implements Acquirer. Contention is reported as an error wrapping
// filehandle.ErrWouldBlock.
func (Try) Acquire(ctx context.Context, l Locker, mode filehandle.LockState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return lock(l, mode, true)
}

// IsContended reports whether err means another handle holds a conflicting lock.
func IsContended(err error) bool {
	return errors.Is(err, filehandle.ErrWouldBlock) || errors.Is(err, ErrTimeout)
}

func lock(l Locker, mode filehandle.LockState, nonBlocking bool) error {
	switch mode {
	case filehandle.Shared:
		if nonBlocking {
			return l.TryLockShared()
		}
		return l.LockShared()
	case filehandle.Exclusive:
		if nonBlocking {
			return l.TryLockExclusive()
		}
		return l.LockExclusive()
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
}
