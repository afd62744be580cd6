package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshuapare/framekit/internal/buf"
)

// RegionType classifies a memory-map entry.
type RegionType uint8

const (
	RegionUsable RegionType = iota
	RegionReserved
	RegionFirmware
	RegionACPIReclaim
	RegionACPINVS
	RegionUnusable
	RegionBootloader
	RegionKernel
)

var regionTypeNames = [...]string{
	RegionUsable:      "usable",
	RegionReserved:    "reserved",
	RegionFirmware:    "firmware",
	RegionACPIReclaim: "acpi-reclaim",
	RegionACPINVS:     "acpi-nvs",
	RegionUnusable:    "unusable",
	RegionBootloader:  "bootloader",
	RegionKernel:      "kernel",
}

func (t RegionType) String() string {
	if int(t) < len(regionTypeNames) {
		return regionTypeNames[t]
	}
	return fmt.Sprintf("RegionType(%d)", uint8(t))
}

// ParseRegionType parses the names produced by String, case-insensitively.
func ParseRegionType(s string) (RegionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range regionTypeNames {
		if name == s {
			return RegionType(i), nil
		}
	}
	return 0, fmt.Errorf("frame: unknown region type %q", s)
}

// Usable reports whether memory of this type may be handed out by the allocator.
func (t RegionType) Usable() bool { return t == RegionUsable }

// Owner returns the owner recorded for regions of this type at boot.
func (t RegionType) Owner() Owner {
	switch t {
	case RegionUsable:
		return Nobody
	case RegionFirmware, RegionACPIReclaim, RegionACPINVS:
		return Firmware
	case RegionKernel, RegionBootloader:
		return Kernel
	default:
		return Reserved
	}
}

// MemoryMapEntry is one region of the platform memory map.
type MemoryMapEntry struct {
	Base  PhysAddr
	Pages uint64 // default-size pages
	Type  RegionType
}

// ErrRange indicates a memory-map entry whose length or end does not fit in
// the physical address space.
var ErrRange = errors.New("frame: entry overflows the address space")

// Size returns the entry length in bytes. The result is only meaningful for
// entries that pass Range.
func (e MemoryMapEntry) Size() uint64 { return e.Pages * DefaultPageSize.Bytes() }

// End returns the first address past the entry. The result is only
// meaningful for entries that pass Range.
func (e MemoryMapEntry) End() PhysAddr { return e.Base.Add(e.Size()) }

// Range returns the entry length and end, failing with ErrRange when the page
// count does not fit in bytes or the end wraps.
func (e MemoryMapEntry) Range() (uint64, PhysAddr, error) {
	size, ok := buf.MulOverflowSafe(e.Pages, DefaultPageSize.Bytes())
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d pages at %s", ErrRange, e.Pages, e.Base)
	}
	end, err := buf.RangeEnd(uint64(e.Base), size)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrRange, err)
	}
	return size, PhysAddr(end), nil
}

func (e MemoryMapEntry) String() string {
	if _, end, err := e.Range(); err == nil {
		return fmt.Sprintf("[%s, %s) %s", e.Base, end, e.Type)
	}
	return fmt.Sprintf("[%s, +%d pages) %s", e.Base, e.Pages, e.Type)
}
