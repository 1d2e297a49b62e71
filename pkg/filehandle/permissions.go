package filehandle

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ModeMask covers the bits SetPermissions applies: rwx for all classes plus
// setuid, setgid and sticky.
const ModeMask = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// ============================================================================
// Mode Parsing
// ============================================================================

// ParseMode parses an octal permission string such as "0644" or "755".
//
// Accepted input is 1 to 4 octal digits and nothing else: no whitespace, no
// sign, no "0o" prefix. Setuid, setgid and sticky bits in the leading digit
// map to the corresponding os.FileMode flags. Failures wrap ErrInvalidFormat.
func ParseMode(s string) (os.FileMode, error) {
	if len(s) == 0 || len(s) > 4 {
		return 0, fmt.Errorf("%w: %q must be 1 to 4 octal digits", ErrInvalidFormat, s)
	}

	var v uint32
	for _, c := range s {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("%w: %q contains non-octal character %q", ErrInvalidFormat, s, c)
		}
		v = v<<3 | uint32(c-'0')
	}

	return modeFromUnix(v), nil
}

// FormatMode renders the permission bits of m as a 4 digit octal string.
func FormatMode(m os.FileMode) string {
	return fmt.Sprintf("%04o", modeToUnix(m))
}

func modeFromUnix(v uint32) os.FileMode {
	m := os.FileMode(v & 0o777)
	if v&0o4000 != 0 {
		m |= os.ModeSetuid
	}
	if v&0o2000 != 0 {
		m |= os.ModeSetgid
	}
	if v&0o1000 != 0 {
		m |= os.ModeSticky
	}
	return m
}

func modeToUnix(m os.FileMode) uint32 {
	v := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		v |= 0o4000
	}
	if m&os.ModeSetgid != 0 {
		v |= 0o2000
	}
	if m&os.ModeSticky != 0 {
		v |= 0o1000
	}
	return v
}

// ============================================================================
// Mode and Ownership Changes
// ============================================================================

// SetPermissions applies mode to the file immediately and, on success,
// updates the cached permission value. Bits outside ModeMask are ignored.
func (h *FileHandle) SetPermissions(mode os.FileMode) error {
	mode &= ModeMask

	began := time.Now()
	err := os.Chmod(h.path, mode)
	h.metrics.RecordOperation("chmod", time.Since(began), err)
	if err != nil {
		return h.newError(KindPermission, "chmod", cause(err))
	}

	h.perm = mode
	return nil
}

// SetPermissionsString parses an octal string (see ParseMode) and applies it.
//
// On a parse failure nothing is changed and a KindInvalidFormat error is
// returned.
func (h *FileHandle) SetPermissionsString(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return h.newError(KindInvalidFormat, "parse", err)
	}
	return h.SetPermissions(mode)
}

// SetOwner changes the owning user and keeps the current group.
//
// Ownership is re-read from the filesystem first; a vanished path or a
// refused chown yields KindPermission.
func (h *FileHandle) SetOwner(uid uint32) error {
	attr, err := h.pathAttributes()
	if err != nil {
		return err
	}
	return h.chown(uid, attr.gid)
}

// SetGroup changes the owning group and keeps the current user.
func (h *FileHandle) SetGroup(gid uint32) error {
	attr, err := h.pathAttributes()
	if err != nil {
		return err
	}
	return h.chown(attr.uid, gid)
}

// GrantReadToUser adds the owner-read bit and makes uid (0 for the current
// process user) the owner of the file.
func (h *FileHandle) GrantReadToUser(uid uint32) error {
	return h.grant(uid, 0o400)
}

// GrantWriteToUser adds the owner-write bit and makes uid (0 for the current
// process user) the owner of the file.
func (h *FileHandle) GrantWriteToUser(uid uint32) error {
	return h.grant(uid, 0o200)
}

func (h *FileHandle) grant(uid uint32, bits os.FileMode) error {
	identity, err := h.resolveIdentity(uid)
	if err != nil {
		return err
	}

	attr, err := h.pathAttributes()
	if err != nil {
		return err
	}

	// chmod first: after handing the file to another user we may no longer
	// be allowed to change its mode.
	if err := h.SetPermissions(attr.mode | bits); err != nil {
		return err
	}
	if identity.UID == attr.uid {
		return nil
	}
	return h.chown(identity.UID, attr.gid)
}

func (h *FileHandle) chown(uid, gid uint32) error {
	began := time.Now()
	err := os.Chown(h.path, int(uid), int(gid))
	h.metrics.RecordOperation("chown", time.Since(began), err)
	if err != nil {
		return h.newError(KindPermission, "chown", cause(err))
	}
	return nil
}

// ============================================================================
// Ownership and Access Queries
// ============================================================================

// IsOwnedByUser reports whether uid (0 for the current process user) owns the file.
func (h *FileHandle) IsOwnedByUser(uid uint32) (bool, error) {
	identity, attr, err := h.accessContext(uid)
	if err != nil {
		return false, err
	}
	return identity.UID == attr.uid, nil
}

// IsInFileGroup reports whether uid (0 for the current process user) is a
// member, primary or supplementary, of the file's group.
func (h *FileHandle) IsInFileGroup(uid uint32) (bool, error) {
	identity, attr, err := h.accessContext(uid)
	if err != nil {
		return false, err
	}
	return identity.InGroup(attr.gid), nil
}

// HasReadAccess evaluates the read bit of the single class that applies to
// uid (0 for the current process user).
func (h *FileHandle) HasReadAccess(uid uint32) (bool, error) {
	identity, attr, err := h.accessContext(uid)
	if err != nil {
		return false, err
	}
	return hasPermission(identity, attr, 0o4), nil
}

// HasWriteAccess evaluates the write bit of the single class that applies to
// uid (0 for the current process user).
func (h *FileHandle) HasWriteAccess(uid uint32) (bool, error) {
	identity, attr, err := h.accessContext(uid)
	if err != nil {
		return false, err
	}
	return hasPermission(identity, attr, 0o2), nil
}

// hasPermission checks one permission bit (4 read, 2 write, 1 execute).
//
// Exactly one class is consulted:
//   - Owner: owner bits (mode & 0700)
//   - Group member (primary or supplementary), not owner: group bits (mode & 0070)
//   - Everyone else: other bits (mode & 0007)
//
// The classes are never OR'd: an owner with mode 0077 has no access.
func hasPermission(identity *Identity, attr fileAttr, bit os.FileMode) bool {
	perm := attr.mode.Perm()

	if identity.UID == attr.uid {
		return perm&(bit<<6) != 0
	}

	if identity.InGroup(attr.gid) {
		return perm&(bit<<3) != 0
	}

	return perm&bit != 0
}

// fileAttr is the subset of stat(2) used for ownership and access decisions.
type fileAttr struct {
	uid  uint32
	gid  uint32
	mode os.FileMode
}

func (h *FileHandle) accessContext(uid uint32) (*Identity, fileAttr, error) {
	identity, err := h.resolveIdentity(uid)
	if err != nil {
		return nil, fileAttr{}, err
	}

	info, err := h.stat()
	if err != nil {
		return nil, fileAttr{}, err
	}

	attr, ok := attributesOf(info)
	if !ok {
		return nil, fileAttr{}, h.newError(KindStat, "stat", errors.ErrUnsupported)
	}
	return identity, attr, nil
}

// pathAttributes stats the path itself; failures are KindPermission because
// they abort an ownership or mode change.
func (h *FileHandle) pathAttributes() (fileAttr, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return fileAttr{}, h.newError(KindPermission, "stat", cause(err))
	}

	attr, ok := attributesOf(info)
	if !ok {
		return fileAttr{}, h.newError(KindPermission, "stat", errors.ErrUnsupported)
	}
	return attr, nil
}

func attributesOf(info os.FileInfo) (fileAttr, bool) {
	uid, gid, ok := fileOwner(info)
	if !ok {
		return fileAttr{}, false
	}
	return fileAttr{uid: uid, gid: gid, mode: info.Mode() & ModeMask}, true
}
