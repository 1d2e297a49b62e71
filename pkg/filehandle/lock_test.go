//go:build unix

package filehandle

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_RequiresOpenHandle(t *testing.T) {
	h := New(newTestPath(t), 0600)

	for name, lock := range map[string]func() error{
		"LockShared":       h.LockShared,
		"LockExclusive":    h.LockExclusive,
		"TryLockShared":    h.TryLockShared,
		"TryLockExclusive": h.TryLockExclusive,
	} {
		t.Run(name, func(t *testing.T) {
			err := lock()
			require.Error(t, err)
			assert.True(t, IsKind(err, KindNotOpen))
			assert.Equal(t, Unlocked, h.LockState())
		})
	}

	assert.False(t, h.Exists(), "locking must not create the file")
}

func TestLock_StateTransitions(t *testing.T) {
	h := mustOpen(t, newTestPath(t), IntentReadWrite)

	require.NoError(t, h.LockExclusive())
	assert.Equal(t, Exclusive, h.LockState())
	assert.True(t, h.IsLocked())

	require.NoError(t, h.LockExclusive(), "same mode is a no-op")
	assert.Equal(t, Exclusive, h.LockState())

	require.NoError(t, h.LockShared())
	assert.Equal(t, Shared, h.LockState())

	require.NoError(t, h.TryLockExclusive())
	assert.Equal(t, Exclusive, h.LockState())

	require.NoError(t, h.Unlock())
	assert.Equal(t, Unlocked, h.LockState())
	assert.False(t, h.IsLocked())

	assert.NoError(t, h.Unlock(), "unlocking twice is a no-op")
}

func TestLock_WorksOnWriteOnlyDescriptor(t *testing.T) {
	h := mustOpen(t, newTestPath(t), IntentWrite)

	require.NoError(t, h.LockShared())
	require.NoError(t, h.LockExclusive())
	assert.Equal(t, Exclusive, h.LockState())
}

func TestTryLock_Contention(t *testing.T) {
	path := newTestPath(t)
	a := mustOpen(t, path, IntentReadWrite)
	b := mustOpen(t, path, IntentReadWrite)

	t.Run("SharedLocksAreCompatible", func(t *testing.T) {
		require.NoError(t, a.LockShared())
		require.NoError(t, b.TryLockShared())
		require.NoError(t, a.Unlock())
		require.NoError(t, b.Unlock())
	})

	t.Run("ExclusiveBlocksExclusive", func(t *testing.T) {
		require.NoError(t, a.LockExclusive())
		defer a.Unlock()

		err := b.TryLockExclusive()
		require.Error(t, err)
		assert.True(t, IsKind(err, KindLock))
		assert.ErrorIs(t, err, ErrWouldBlock)
		assert.Equal(t, Unlocked, b.LockState())
	})

	t.Run("ExclusiveBlocksShared", func(t *testing.T) {
		require.NoError(t, a.LockExclusive())
		defer a.Unlock()

		assert.ErrorIs(t, b.TryLockShared(), ErrWouldBlock)
	})

	t.Run("SharedBlocksExclusive", func(t *testing.T) {
		require.NoError(t, a.LockShared())
		defer a.Unlock()

		assert.ErrorIs(t, b.TryLockExclusive(), ErrWouldBlock)
	})
}

func TestLockShared_WaitsForWriter(t *testing.T) {
	path := newTestPath(t)
	writer := mustOpen(t, path, IntentReadWrite)
	reader := mustOpen(t, path, IntentRead)

	require.NoError(t, writer.LockExclusive())
	_, err := writer.Write([]byte("0123456789"), 0, 0)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		acquired <- reader.LockShared()
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock granted while exclusive lock is held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, writer.Unlock())

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shared lock not granted after writer released")
	}

	data, err := reader.Read(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

// Helper process: writes a payload under an exclusive lock and holds it so
// the parent can observe cross-process blocking.
func TestLockHelperProcess(t *testing.T) {
	if os.Getenv("FILEHANDLE_LOCK_HELPER") != "1" {
		t.Skip("helper process")
	}
	path := os.Args[len(os.Args)-1]

	h := New(path, 0600)
	if _, err := h.Open(IntentReadWrite); err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer h.Close()

	if err := h.LockExclusive(); err != nil {
		fmt.Fprintf(os.Stderr, "lock: %v\n", err)
		os.Exit(1)
	}
	if _, err := h.Write([]byte("from-child"), 0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("locked")
	time.Sleep(300 * time.Millisecond)
}

func TestLock_BlocksAcrossProcesses(t *testing.T) {
	path := newTestPath(t)

	cmd := exec.Command(os.Args[0], "-test.run=TestLockHelperProcess", "--", path)
	cmd.Env = append(os.Environ(), "FILEHANDLE_LOCK_HELPER=1")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	scanner := bufio.NewScanner(stdout)
	require.True(t, scanner.Scan(), "helper did not report locking: %v", scanner.Err())
	require.Equal(t, "locked", scanner.Text())

	h := mustOpen(t, path, IntentRead)
	assert.ErrorIs(t, h.TryLockShared(), ErrWouldBlock)

	acquired := make(chan error, 1)
	go func() {
		acquired <- h.LockShared()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while helper holds it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, cmd.Wait(), "helper failed")

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lock not acquired after helper exited")
	}

	data, err := h.Read(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "from-child", string(data))
}
