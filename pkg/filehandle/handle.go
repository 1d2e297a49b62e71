package filehandle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/marmos91/filehandle/internal/logger"
)

// DefaultPermissions is the creation mode used when none is configured.
const DefaultPermissions os.FileMode = 0600

// Options configures a FileHandle.
type Options struct {
	// Permissions is the mode used when the file has to be created.
	// Zero means DefaultPermissions.
	Permissions os.FileMode

	// Metrics receives operation observations. Nil disables collection.
	Metrics Metrics

	// Identity resolves user IDs for ownership and access queries.
	// Nil means OSIdentityResolver.
	Identity IdentityResolver
}

// FileHandle is one named file on disk plus this process's current
// relationship to it: an optional open descriptor, the intent it was opened
// with and the advisory lock held on it.
//
// Invariants:
//   - lock != Unlocked implies file != nil
//   - intent == IntentNone iff file == nil
//
// A FileHandle is not safe for concurrent use; use one handle per goroutine
// and coordinate through advisory locks.
type FileHandle struct {
	path     string
	perm     os.FileMode
	file     *os.File
	intent   Intent
	lock     LockState
	metrics  Metrics
	identity IdentityResolver
}

// New creates a handle bound to path. No I/O is performed.
func New(path string, perm os.FileMode) *FileHandle {
	return NewWithOptions(path, Options{Permissions: perm})
}

// NewWithOptions creates a handle bound to path using opts. No I/O is performed.
func NewWithOptions(path string, opts Options) *FileHandle {
	h := &FileHandle{
		path:     path,
		perm:     opts.Permissions,
		metrics:  opts.Metrics,
		identity: opts.Identity,
	}
	if h.perm == 0 {
		h.perm = DefaultPermissions
	}
	if h.metrics == nil {
		h.metrics = noopMetrics{}
	}
	if h.identity == nil {
		h.identity = OSIdentityResolver{}
	}
	return h
}

// Open opens the file with the given intent, creating it with the handle's
// permissions if it does not exist.
//
// If the handle is already open with the same intent the live descriptor is
// returned. If it is open with a different intent it is closed first (which
// releases any held lock) and reopened.
//
// Parameters:
//   - intent: IntentRead, IntentWrite or IntentReadWrite
//
// Returns:
//   - *os.File: The live descriptor, owned by the handle (do not close it directly)
//   - error: KindOpen on failure; the handle is then closed and unlocked
func (h *FileHandle) Open(intent Intent) (*os.File, error) {
	start := time.Now()
	f, err := h.open(intent)
	h.metrics.RecordOperation("open", time.Since(start), err)
	return f, err
}

func (h *FileHandle) open(intent Intent) (*os.File, error) {
	flags, ok := intent.flags()
	if !ok {
		return nil, h.newError(KindOpen, "open", fmt.Errorf("%w: %s", ErrInvalidIntent, intent))
	}

	if h.file != nil {
		if h.intent == intent {
			return h.file, nil
		}

		logger.Debug("filehandle: reopening %s as %s (was %s)", h.path, intent, h.intent)
		if err := h.Close(); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(h.path, flags, h.perm)
	if err != nil {
		h.reset()
		return nil, h.newError(KindOpen, "open", cause(err))
	}

	h.file = f
	h.intent = intent
	h.lock = Unlocked

	logger.Debug("filehandle: opened %s as %s", h.path, intent)
	return f, nil
}

// EnsureOpen is the implicit-open convenience.
//
// A closed handle is opened with intent. An open handle whose intent already
// allows the request is returned as is. Anything else fails with
// KindWrongIntent: the descriptor is never silently reopened, so a lock held
// on it is never dropped behind the caller's back.
func (h *FileHandle) EnsureOpen(intent Intent) (*os.File, error) {
	if _, ok := intent.flags(); !ok {
		return nil, h.newError(KindOpen, "open", fmt.Errorf("%w: %s", ErrInvalidIntent, intent))
	}
	if h.file == nil {
		return h.Open(intent)
	}
	if h.intent.satisfies(intent) {
		return h.file, nil
	}
	return nil, h.wrongIntent("open", intent)
}

// Close releases any held lock, then the descriptor.
//
// Both steps are always attempted and the handle always ends up closed and
// unlocked. Failures of either step are joined into the returned error.
// Calling Close on a closed handle does nothing and returns nil.
func (h *FileHandle) Close() error {
	if h.file == nil {
		return nil
	}

	start := time.Now()
	var errs []error

	if h.lock != Unlocked {
		if err := funlock(h.file); err != nil {
			logger.Warn("filehandle: failed to release %s lock on %s during close: %v", h.lock, h.path, err)
			errs = append(errs, h.newError(KindLock, "unlock", err))
		}
	}

	if err := h.file.Close(); err != nil {
		errs = append(errs, h.newError(KindClose, "close", cause(err)))
	}

	h.reset()

	err := errors.Join(errs...)
	h.metrics.RecordOperation("close", time.Since(start), err)
	logger.Debug("filehandle: closed %s", h.path)
	return err
}

func (h *FileHandle) reset() {
	h.file = nil
	h.intent = IntentNone
	h.lock = Unlocked
}

// Path returns the file path the handle is bound to.
func (h *FileHandle) Path() string {
	return h.path
}

// Permissions returns the cached permission bits.
func (h *FileHandle) Permissions() os.FileMode {
	return h.perm
}

// File returns the open descriptor or nil when closed.
func (h *FileHandle) File() *os.File {
	return h.file
}

// Intent returns the intent of the open descriptor, IntentNone when closed.
func (h *FileHandle) Intent() Intent {
	return h.intent
}

// LockState returns the advisory lock currently held by this handle.
func (h *FileHandle) LockState() LockState {
	return h.lock
}

// IsOpen reports whether a descriptor is held.
func (h *FileHandle) IsOpen() bool {
	return h.file != nil
}

// IsLocked reports whether any advisory lock is held.
func (h *FileHandle) IsLocked() bool {
	return h.lock != Unlocked
}

// IsReadable reports whether the open descriptor allows reads.
func (h *FileHandle) IsReadable() bool {
	return h.file != nil && h.intent.CanRead()
}

// IsWritable reports whether the open descriptor allows writes.
func (h *FileHandle) IsWritable() bool {
	return h.file != nil && h.intent.CanWrite()
}

// Exists reports whether the path currently exists on disk.
func (h *FileHandle) Exists() bool {
	_, err := os.Stat(h.path)
	return err == nil
}

// Size returns the current file size.
//
// The open descriptor is used when available (fstat), the path otherwise.
// The value is a snapshot: without a lock held across the size query and the
// following I/O, another writer may change the size in between.
func (h *FileHandle) Size() (int64, error) {
	info, err := h.stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *FileHandle) stat() (os.FileInfo, error) {
	var (
		info os.FileInfo
		err  error
	)
	if h.file != nil {
		info, err = h.file.Stat()
	} else {
		info, err = os.Stat(h.path)
	}
	if err != nil {
		return nil, h.newError(KindStat, "stat", cause(err))
	}
	return info, nil
}

// requireOpen checks the descriptor is open with an intent that serves want.
func (h *FileHandle) requireOpen(op string, want Intent) error {
	if h.file == nil {
		return h.newError(KindNotOpen, op, ErrNotOpen)
	}
	if want != IntentNone && !h.intent.satisfies(want) {
		return h.wrongIntent(op, want)
	}
	return nil
}

func (h *FileHandle) wrongIntent(op string, want Intent) error {
	return h.newError(KindWrongIntent, op,
		fmt.Errorf("%w: open as %s, %s requires %s", ErrWrongIntent, h.intent, op, want))
}

// cause strips *fs.PathError so the path is not repeated in messages.
func cause(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
