//go:build !unix && !windows

package filehandle

import (
	"errors"
	"os"
)

func flock(_ *os.File, _ LockState, _ bool) error {
	return errors.ErrUnsupported
}

func funlock(_ *os.File) error {
	return errors.ErrUnsupported
}
