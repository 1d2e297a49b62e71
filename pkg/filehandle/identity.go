package filehandle

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/user"
	"slices"
	"strconv"
)

// Identity is the Unix identity used for ownership and access checks.
type Identity struct {
	// UID is the user ID
	UID uint32

	// GID is the primary group ID
	GID uint32

	// GIDs lists supplementary group IDs
	GIDs []uint32
}

// InGroup reports whether gid is the primary or a supplementary group.
func (id *Identity) InGroup(gid uint32) bool {
	return id.GID == gid || slices.Contains(id.GIDs, gid)
}

// NoGroup is the primary GID given to users unknown to the user database.
// It matches no real group, so such users fall into the other class unless
// they own the file.
const NoGroup uint32 = math.MaxUint32

// IdentityResolver resolves a user ID into a full identity.
//
// A uid of 0 means "the current process user". Resolution is an external
// capability: tests inject fixed identities, production uses the OS user
// database.
type IdentityResolver interface {
	Resolve(uid uint32) (*Identity, error)
}

// OSIdentityResolver resolves identities through os/user.
type OSIdentityResolver struct{}

// Resolve implements IdentityResolver.
//
// For the current process user a missing user database entry is not fatal:
// the process credentials are used instead. Any other uid without an entry
// resolves to a bare identity with GID NoGroup and no supplementary groups.
func (OSIdentityResolver) Resolve(uid uint32) (*Identity, error) {
	current := uid == 0
	if current {
		uid = uint32(os.Getuid())
	}

	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		if current {
			return processIdentity(), nil
		}
		var unknown user.UnknownUserIdError
		if errors.As(err, &unknown) {
			return &Identity{UID: uid, GID: NoGroup}, nil
		}
		return nil, fmt.Errorf("lookup uid %d: %w", uid, err)
	}

	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse gid %q for uid %d: %w", u.Gid, uid, err)
	}

	identity := &Identity{UID: uid, GID: uint32(gid)}

	groupIDs, err := u.GroupIds()
	if err != nil {
		// Supplementary groups are optional on some platforms
		if current {
			identity.GIDs = processGroups()
		}
		return identity, nil
	}

	for _, g := range groupIDs {
		v, err := strconv.ParseUint(g, 10, 32)
		if err != nil {
			continue
		}
		if uint32(v) != identity.GID {
			identity.GIDs = append(identity.GIDs, uint32(v))
		}
	}

	return identity, nil
}

func processIdentity() *Identity {
	return &Identity{
		UID:  uint32(os.Getuid()),
		GID:  uint32(os.Getgid()),
		GIDs: processGroups(),
	}
}

func processGroups() []uint32 {
	groups, err := os.Getgroups()
	if err != nil {
		return nil
	}
	out := make([]uint32, 0, len(groups))
	for _, g := range groups {
		out = append(out, uint32(g))
	}
	return out
}

// resolveIdentity wraps resolver failures into KindIdentity errors.
func (h *FileHandle) resolveIdentity(uid uint32) (*Identity, error) {
	identity, err := h.identity.Resolve(uid)
	if err != nil {
		return nil, h.newError(KindIdentity, "resolve", err)
	}
	return identity, nil
}
