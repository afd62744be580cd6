// Package buf contains overflow-safe arithmetic for physical address ranges and
// byte slices.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uint64.
// This is essential for count * pageSize calculations when dimensioning tables.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// RangeEnd returns base+size, the exclusive end of [base, base+size).
// It fails when the range wraps the address space.
func RangeEnd(base, size uint64) (uint64, error) {
	end, ok := AddOverflowSafe(base, size)
	if !ok {
		return 0, fmt.Errorf("overflow: base=%#x + size=%#x", base, size)
	}
	return end, nil
}

// Overlaps reports whether [aBase, aEnd) and [bBase, bEnd) share any byte.
func Overlaps(aBase, aEnd, bBase, bEnd uint64) bool {
	return aBase < bEnd && bBase < aEnd
}

// CheckRange validates that [off, off+n) lies within a region of limit bytes
// and returns the end offset.
//
//	end, err := buf.CheckRange(size, off, n)
//	if err != nil {
//	    return fmt.Errorf("physmem: %w", err)
//	}
func CheckRange(limit, off, n uint64) (uint64, error) {
	end, err := RangeEnd(off, n)
	if err != nil {
		return 0, err
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=%#x > limit=%#x", end, limit)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n uint64) ([]byte, bool) {
	end, err := CheckRange(uint64(len(b)), off, n)
	if err != nil {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n uint64) bool {
	_, ok := Slice(b, off, n)
	return ok
}
