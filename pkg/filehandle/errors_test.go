package filehandle

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindLock, Op: "trylock", Path: "/tmp/x", Err: ErrWouldBlock}
	assert.Equal(t, "LockError: trylock /tmp/x: lock would block", err.Error())

	bare := &Error{Kind: KindNotOpen}
	assert.Equal(t, "NotOpenError", bare.Error())
}

func TestError_Code(t *testing.T) {
	err := &Error{Kind: KindOpen, Err: fmt.Errorf("wrapped: %w", syscall.EACCES)}
	assert.Equal(t, syscall.EACCES, err.Code())

	noErrno := &Error{Kind: KindNotOpen, Err: ErrNotOpen}
	assert.Zero(t, noErrno.Code())
}

func TestIsKind(t *testing.T) {
	lockErr := &Error{Kind: KindLock, Err: syscall.EBADF}
	closeErr := &Error{Kind: KindClose, Err: syscall.EIO}

	assert.False(t, IsKind(nil, KindLock))
	assert.False(t, IsKind(errors.New("plain"), KindLock))
	assert.True(t, IsKind(lockErr, KindLock))
	assert.True(t, IsKind(fmt.Errorf("context: %w", lockErr), KindLock))
	assert.False(t, IsKind(lockErr, KindClose))

	joined := errors.Join(lockErr, closeErr)
	assert.True(t, IsKind(joined, KindLock))
	assert.True(t, IsKind(joined, KindClose))
	assert.False(t, IsKind(joined, KindRead))
	assert.ErrorIs(t, joined, syscall.EIO)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "WrongIntentError", KindWrongIntent.String())
	assert.Equal(t, "InvalidFormatError", KindInvalidFormat.String())
	assert.Equal(t, "UnknownError", Kind(99).String())
}

func TestIntentSatisfies(t *testing.T) {
	assert.True(t, IntentReadWrite.satisfies(IntentRead))
	assert.True(t, IntentReadWrite.satisfies(IntentWrite))
	assert.True(t, IntentRead.satisfies(IntentRead))
	assert.False(t, IntentRead.satisfies(IntentWrite))
	assert.False(t, IntentWrite.satisfies(IntentRead))
	assert.False(t, IntentWrite.satisfies(IntentReadWrite))
	assert.False(t, IntentReadWrite.satisfies(IntentNone))
}
