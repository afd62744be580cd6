package frame

import "fmt"

// PhysAddr is a physical memory address.
type PhysAddr uint64

// AlignUp rounds a up to the next multiple of align, which must be a power of two.
func (a PhysAddr) AlignUp(align uint64) PhysAddr {
	return PhysAddr(AlignUp(uint64(a), align))
}

// AlignDown rounds a down to a multiple of align, which must be a power of two.
func (a PhysAddr) AlignDown(align uint64) PhysAddr {
	return PhysAddr(uint64(a) &^ (align - 1))
}

// IsAligned reports whether a is a multiple of align.
func (a PhysAddr) IsAligned(align uint64) bool {
	return uint64(a)&(align-1) == 0
}

// Add returns a+n.
func (a PhysAddr) Add(n uint64) PhysAddr { return a + PhysAddr(n) }

// PageIndex returns the index of the default-size page containing a.
func (a PhysAddr) PageIndex() uint64 {
	return uint64(a) / DefaultPageSize.Bytes()
}

func (a PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// AlignUp rounds v up to the next multiple of align, which must be a power of two.
// The result wraps to zero if v is within align of the top of the address space;
// callers that accept untrusted sizes check for that.
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// PagesFor returns the number of default-size pages needed to hold size bytes.
func PagesFor(size uint64) uint64 {
	page := DefaultPageSize.Bytes()
	return size/page + min(size%page, 1)
}
