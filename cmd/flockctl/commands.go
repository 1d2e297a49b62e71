package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/filehandle/internal/logger"
	"github.com/marmos91/filehandle/pkg/filehandle"
)

// runHold takes an exclusive lock, writes the text at offset 0 and keeps the
// lock for the configured duration so that other processes can be observed
// waiting on it.
func runHold(ctx context.Context, env *environment, args []string) error {
	text := env.cfg.Hold.Text
	if len(args) > 0 {
		text = strings.Join(args, " ")
	}

	h := env.handle
	if _, err := h.Open(filehandle.IntentReadWrite); err != nil {
		return err
	}
	defer closeHandle(h)

	if err := h.SetPermissionsString(env.cfg.File.Permissions); err != nil {
		return err
	}

	logger.Info("Acquiring exclusive lock on %s", h.Path())
	if err := acquire(ctx, env, filehandle.Exclusive); err != nil {
		return err
	}

	payload := text
	if env.cfg.Hold.Stamp {
		payload += fmt.Sprintf("\nholder %s pid %d", uuid.NewString(), os.Getpid())
	}

	n, err := h.Write([]byte(payload), 0, 0)
	if err != nil {
		return err
	}

	logger.Info("Wrote %d bytes, holding lock for %v (Ctrl+C to release early)", n, env.cfg.Hold.Duration)

	timer := time.NewTimer(env.cfg.Hold.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		logger.Info("Interrupted, releasing lock")
	case <-timer.C:
	}

	if err := h.Unlock(); err != nil {
		return err
	}
	logger.Info("Lock released")
	return nil
}

// runRead waits for a shared lock and prints the whole file.
func runRead(ctx context.Context, env *environment, _ []string) error {
	h := env.handle
	if _, err := h.Open(filehandle.IntentRead); err != nil {
		return err
	}
	defer closeHandle(h)

	logger.Info("Reading %s...", h.Path())
	if err := acquire(ctx, env, filehandle.Shared); err != nil {
		return err
	}

	data, err := h.Read(0, 0)
	if err != nil {
		return err
	}

	if err := h.Unlock(); err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "%s\n", data)
	return nil
}

// runAppend appends one line under an exclusive lock.
func runAppend(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: append requires text", errUsage)
	}

	h := env.handle
	if _, err := h.Open(filehandle.IntentWrite); err != nil {
		return err
	}
	defer closeHandle(h)

	if err := acquire(ctx, env, filehandle.Exclusive); err != nil {
		return err
	}

	// The exclusive lock is already held, so the locked variant reuses it and
	// the end-of-file offset cannot move under us.
	n, err := h.AppendLineLocked([]byte(strings.Join(args, " ")))
	if err != nil {
		return err
	}

	if err := h.Unlock(); err != nil {
		return err
	}

	logger.Info("Appended %d bytes to %s", n, h.Path())
	return nil
}

// runChmod applies an octal mode to the file.
func runChmod(_ context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: chmod requires exactly one octal mode", errUsage)
	}

	h := env.handle
	if err := h.SetPermissionsString(args[0]); err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "%s: mode %s\n", h.Path(), filehandle.FormatMode(h.Permissions()))
	return nil
}

// runStat prints size, mode and the access predicates for the current user.
func runStat(_ context.Context, env *environment, _ []string) error {
	h := env.handle
	out := env.stdout

	fmt.Fprintf(out, "path:      %s\n", h.Path())
	if !h.Exists() {
		fmt.Fprintf(out, "exists:    false\n")
		return nil
	}
	fmt.Fprintf(out, "exists:    true\n")

	size, err := h.Size()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "size:      %d\n", size)

	info, err := os.Stat(h.Path())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "mode:      %s\n", filehandle.FormatMode(info.Mode()))

	// uid 0 means the current process user
	checks := []struct {
		label string
		query func(uint32) (bool, error)
	}{
		{"owner", h.IsOwnedByUser},
		{"in group", h.IsInFileGroup},
		{"readable", h.HasReadAccess},
		{"writable", h.HasWriteAccess},
	}
	for _, c := range checks {
		ok, err := c.query(0)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-10s %t\n", c.label+":", ok)
	}
	return nil
}

func closeHandle(h *filehandle.FileHandle) {
	if err := h.Close(); err != nil {
		// A failed unlock or close is reported but cannot change the outcome
		logger.Warn("Failed to close %s: %v", h.Path(), err)
		if filehandle.IsKind(err, filehandle.KindLock) {
			logger.Warn("Lock on %s may still be held until the process exits", h.Path())
		}
	}
}

// acquire takes the lock through the configured strategy.
func acquire(ctx context.Context, env *environment, mode filehandle.LockState) error {
	h := env.handle
	err := env.acquirer.Acquire(ctx, h, mode)
	if err == nil {
		return nil
	}
	if errors.Is(err, filehandle.ErrWouldBlock) {
		logger.Warn("%s is locked by another holder (strategy %s)", h.Path(), env.cfg.Lock.Strategy)
	}
	return fmt.Errorf("failed to take %s lock on %s: %w", mode, h.Path(), err)
}
