//go:build windows

package filehandle

import (
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/windows"
)

// flock takes a whole-file lock with LockFileEx.
//
// Like flock(2) the lock belongs to the handle, so two handles opened on the
// same path conflict inside one process. Unlike flock(2) the lock is
// mandatory: other handles cannot read or write a range locked exclusively.
func flock(f *os.File, mode LockState, nonBlocking bool) error {
	var flags uint32
	if mode == Exclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	if nonBlocking {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}

	var ol windows.Overlapped
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, math.MaxUint32, math.MaxUint32, &ol)
	if nonBlocking && errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return fmt.Errorf("%w: %w", ErrWouldBlock, err)
	}
	return err
}

func funlock(f *os.File) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, math.MaxUint32, math.MaxUint32, &ol)
}
