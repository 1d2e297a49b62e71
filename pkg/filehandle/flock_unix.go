//go:build unix

package filehandle

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// flock takes a whole-file advisory lock with flock(2).
//
// flock locks belong to the open file description, so two descriptors opened
// separately on the same path conflict even inside one process.
func flock(f *os.File, mode LockState, nonBlocking bool) error {
	how := unix.LOCK_SH
	if mode == Exclusive {
		how = unix.LOCK_EX
	}
	if nonBlocking {
		how |= unix.LOCK_NB
	}

	err := ignoringEINTR(func() error {
		return unix.Flock(int(f.Fd()), how)
	})
	if nonBlocking && errors.Is(err, unix.EWOULDBLOCK) {
		return fmt.Errorf("%w: %w", ErrWouldBlock, err)
	}
	return err
}

func funlock(f *os.File) error {
	return ignoringEINTR(func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	})
}

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
