package filehandle

import (
	"errors"
	"syscall"
)

// Kind represents the category of a FileHandle failure.
//
// Callers switch on Kind (or use IsKind) to decide how to react, while the
// wrapped cause keeps the OS-level detail.
type Kind int

const (
	// KindOpen indicates the file could not be opened or created.
	KindOpen Kind = iota

	// KindClose indicates the descriptor could not be released cleanly.
	KindClose

	// KindRead indicates a read syscall failed.
	KindRead

	// KindWrite indicates a write syscall failed.
	KindWrite

	// KindLock indicates an advisory lock could not be acquired or released.
	// Non-blocking attempts on a contended file wrap ErrWouldBlock.
	KindLock

	// KindNotOpen indicates the operation requires an open descriptor.
	KindNotOpen

	// KindWrongIntent indicates the descriptor is open with an intent that
	// does not allow the requested operation (e.g. write on a read-only handle).
	KindWrongIntent

	// KindPermission indicates an ownership or mode change was refused.
	KindPermission

	// KindInvalidFormat indicates a permission string could not be parsed.
	KindInvalidFormat

	// KindStat indicates size or metadata could not be queried.
	KindStat

	// KindIdentity indicates a user identity could not be resolved.
	KindIdentity
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "OpenError"
	case KindClose:
		return "CloseError"
	case KindRead:
		return "ReadError"
	case KindWrite:
		return "WriteError"
	case KindLock:
		return "LockError"
	case KindNotOpen:
		return "NotOpenError"
	case KindWrongIntent:
		return "WrongIntentError"
	case KindPermission:
		return "PermissionError"
	case KindInvalidFormat:
		return "InvalidFormatError"
	case KindStat:
		return "StatError"
	case KindIdentity:
		return "IdentityError"
	default:
		return "UnknownError"
	}
}

var (
	// ErrWouldBlock is wrapped by KindLock errors returned from non-blocking
	// lock attempts when another handle holds a conflicting lock.
	ErrWouldBlock = errors.New("lock would block")

	// ErrNotOpen is wrapped by KindNotOpen errors.
	ErrNotOpen = errors.New("file handle is not open")

	// ErrWrongIntent is wrapped by KindWrongIntent errors.
	ErrWrongIntent = errors.New("file handle opened with incompatible intent")

	// ErrInvalidFormat is wrapped by KindInvalidFormat errors.
	ErrInvalidFormat = errors.New("invalid permission format")

	// ErrInvalidIntent is returned when Open is called with IntentNone or an
	// unknown intent value.
	ErrInvalidIntent = errors.New("invalid open intent")
)

// Error is the failure value returned by every FileHandle operation.
type Error struct {
	// Kind is the error category
	Kind Kind

	// Op is the operation or syscall that failed (e.g. "open", "flock", "chown")
	Op string

	// Path is the file the handle is bound to
	Path string

	// Err is the underlying cause (usually a syscall.Errno or *fs.PathError)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the OS error number carried by the cause, or 0 when the failure
// did not originate from a syscall.
func (e *Error) Code() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// IsKind reports whether any error in err's chain is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}

	var fhErr *Error
	if errors.As(err, &fhErr) && fhErr.Kind == kind {
		return true
	}

	// errors.As stops at the first match; joined errors may carry more.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	}
	return false
}

func (h *FileHandle) newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: h.path, Err: err}
}
