package filehandle

import "os"

// Intent is the read/write capability a descriptor was opened with.
type Intent int

const (
	// IntentNone means the handle is closed.
	IntentNone Intent = iota
	IntentRead
	IntentWrite
	IntentReadWrite
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentRead:
		return "read"
	case IntentWrite:
		return "write"
	case IntentReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// flags returns the open(2) flags for the intent. Every intent creates the
// file when it is missing.
func (i Intent) flags() (int, bool) {
	switch i {
	case IntentRead:
		return os.O_RDONLY | os.O_CREATE, true
	case IntentWrite:
		return os.O_WRONLY | os.O_CREATE, true
	case IntentReadWrite:
		return os.O_RDWR | os.O_CREATE, true
	default:
		return 0, false
	}
}

// CanRead reports whether a descriptor opened with i allows reads.
func (i Intent) CanRead() bool {
	return i == IntentRead || i == IntentReadWrite
}

// CanWrite reports whether a descriptor opened with i allows writes.
func (i Intent) CanWrite() bool {
	return i == IntentWrite || i == IntentReadWrite
}

// satisfies reports whether a descriptor opened with i can serve want.
func (i Intent) satisfies(want Intent) bool {
	switch want {
	case IntentRead:
		return i.CanRead()
	case IntentWrite:
		return i.CanWrite()
	case IntentReadWrite:
		return i == IntentReadWrite
	default:
		return false
	}
}

// LockState is the advisory lock currently held by a handle.
type LockState int

const (
	Unlocked LockState = iota
	Shared
	Exclusive
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}
