package frame

import (
	"errors"
	"fmt"
	"math"
)

// Owner identifies who holds a frame. See the package documentation for the encoding.
type Owner uint64

const (
	// Nobody owns free frames.
	Nobody Owner = 0
	// Reserved marks memory that is not usable for allocation.
	Reserved Owner = 1
	// Kernel owns kernel images and kernel allocations.
	Kernel Owner = 2
	// Memory owns the memory manager's own bookkeeping structures.
	Memory Owner = 3

	Firmware Owner = math.MaxUint32 - 2
	Uefi     Owner = math.MaxUint32 - 1
	Verboten Owner = math.MaxUint32
)

const (
	// MinSystemID is the smallest id accepted by SystemOwner.
	MinSystemID uint64 = 4
	// MaxSystemID is the largest id accepted by SystemOwner.
	MaxSystemID uint64 = math.MaxUint32 - 3
	// MinUserID is the smallest id accepted by UserOwner.
	MinUserID uint64 = math.MaxUint32 + 1
)

// ErrOwnerID indicates an owner id outside the range of its variant.
var ErrOwnerID = errors.New("frame: owner id out of range")

// SystemOwner returns the System(id) owner.
func SystemOwner(id uint64) (Owner, error) {
	if id < MinSystemID || id > MaxSystemID {
		return Nobody, fmt.Errorf("%w: system id %d", ErrOwnerID, id)
	}
	return Owner(id), nil
}

// UserOwner returns the User(id) owner.
func UserOwner(id uint64) (Owner, error) {
	if id < MinUserID {
		return Nobody, fmt.Errorf("%w: user id %d", ErrOwnerID, id)
	}
	return Owner(id), nil
}

// OwnerFromBits decodes a raw owner value. Every 64-bit value is a valid owner.
func OwnerFromBits(v uint64) Owner { return Owner(v) }

// Bits returns the raw encoding of o.
func (o Owner) Bits() uint64 { return uint64(o) }

// IsFree reports whether o is Nobody.
func (o Owner) IsFree() bool { return o == Nobody }

// IsSystem reports whether o is below the user id range.
func (o Owner) IsSystem() bool { return uint64(o) < MinUserID }

// IsUser reports whether o is a User(id) owner.
func (o Owner) IsUser() bool { return uint64(o) >= MinUserID }

// ID returns the id carried by a System(id) or User(id) owner, and false for
// the fixed owners.
func (o Owner) ID() (uint64, bool) {
	v := uint64(o)
	if (v >= MinSystemID && v <= MaxSystemID) || v >= MinUserID {
		return v, true
	}
	return 0, false
}

func (o Owner) String() string {
	switch o {
	case Nobody:
		return "nobody"
	case Reserved:
		return "reserved"
	case Kernel:
		return "kernel"
	case Memory:
		return "memory"
	case Firmware:
		return "firmware"
	case Uefi:
		return "uefi"
	case Verboten:
		return "verboten"
	}
	if o.IsUser() {
		return fmt.Sprintf("user(%d)", uint64(o))
	}
	return fmt.Sprintf("system(%d)", uint64(o))
}

// ParseOwner parses the form produced by String. Bare numbers are decoded with
// OwnerFromBits.
func ParseOwner(s string) (Owner, error) {
	switch s {
	case "nobody", "free":
		return Nobody, nil
	case "reserved":
		return Reserved, nil
	case "kernel":
		return Kernel, nil
	case "memory":
		return Memory, nil
	case "firmware":
		return Firmware, nil
	case "uefi":
		return Uefi, nil
	case "verboten":
		return Verboten, nil
	}
	var id uint64
	if _, err := fmt.Sscanf(s, "system(%d)", &id); err == nil {
		return SystemOwner(id)
	}
	if _, err := fmt.Sscanf(s, "user(%d)", &id); err == nil {
		return UserOwner(id)
	}
	if _, err := fmt.Sscan(s, &id); err == nil {
		return OwnerFromBits(id), nil
	}
	return Nobody, fmt.Errorf("frame: unknown owner %q", s)
}
