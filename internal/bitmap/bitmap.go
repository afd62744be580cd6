// Package bitmap implements the slot bitmap that tracks which descriptor-pool
// slots are available. A set bit means the slot is free.
package bitmap

import (
	"errors"
	"fmt"
	"math/bits"
)

const wordBits = 64

var (
	// ErrOutOfRange indicates a slot index outside the bitmap capacity.
	ErrOutOfRange = errors.New("bitmap: slot out of range")

	// ErrAlreadyFree indicates a slot released twice.
	ErrAlreadyFree = errors.New("bitmap: slot already free")

	// ErrEmptyRun indicates a run search for zero slots.
	ErrEmptyRun = errors.New("bitmap: run length must be positive")
)

// Bitmap is a fixed-capacity bit set. It is not safe for concurrent use.
type Bitmap struct {
	words    []uint64
	capacity int
}

// New returns a bitmap of the given capacity with every slot free.
func New(capacity int) *Bitmap {
	if capacity < 0 {
		capacity = 0
	}
	b := &Bitmap{
		words:    make([]uint64, (capacity+wordBits-1)/wordBits),
		capacity: capacity,
	}
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	b.clearTail()
	return b
}

// clearTail keeps the bits past capacity clear so word scans never report them.
func (b *Bitmap) clearTail() {
	if rem := b.capacity % wordBits; rem != 0 {
		b.words[len(b.words)-1] &= (uint64(1) << rem) - 1
	}
}

// Capacity returns the number of slots.
func (b *Bitmap) Capacity() int { return b.capacity }

// SizeBytes returns the backing storage size in bytes.
func (b *Bitmap) SizeBytes() int { return len(b.words) * 8 }

// AllocSlot finds the first free slot, marks it used and returns its index.
// It returns false when every slot is in use.
func (b *Bitmap) AllocSlot() (int, bool) {
	i, ok := b.FindFirstSet()
	if !ok {
		return 0, false
	}
	b.words[i/wordBits] &^= 1 << (i % wordBits)
	return i, true
}

// DeallocSlot marks slot i free again.
func (b *Bitmap) DeallocSlot(i int) error {
	if i < 0 || i >= b.capacity {
		return fmt.Errorf("%w: %d (capacity %d)", ErrOutOfRange, i, b.capacity)
	}
	if b.IsSet(i) {
		return fmt.Errorf("%w: %d", ErrAlreadyFree, i)
	}
	b.words[i/wordBits] |= 1 << (i % wordBits)
	return nil
}

// Set marks slot i free. Out-of-range indices are ignored.
func (b *Bitmap) Set(i int) {
	if i >= 0 && i < b.capacity {
		b.words[i/wordBits] |= 1 << (i % wordBits)
	}
}

// Clear marks slot i used. Out-of-range indices are ignored.
func (b *Bitmap) Clear(i int) {
	if i >= 0 && i < b.capacity {
		b.words[i/wordBits] &^= 1 << (i % wordBits)
	}
}

// IsSet reports whether slot i is free. Out-of-range slots are never free.
func (b *Bitmap) IsSet(i int) bool {
	if i < 0 || i >= b.capacity {
		return false
	}
	return b.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// SetCount returns the number of free slots.
func (b *Bitmap) SetCount() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// ClearCount returns the number of used slots.
func (b *Bitmap) ClearCount() int { return b.capacity - b.SetCount() }

// FindFirstSet returns the lowest free slot.
func (b *Bitmap) FindFirstSet() (int, bool) {
	return b.FindNextSet(0)
}

// FindNextSet returns the lowest free slot at or after from.
func (b *Bitmap) FindNextSet(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	if from >= b.capacity {
		return 0, false
	}
	wi := from / wordBits
	w := b.words[wi] &^ ((uint64(1) << (from % wordBits)) - 1)
	for {
		if w != 0 {
			return wi*wordBits + bits.TrailingZeros64(w), true
		}
		wi++
		if wi >= len(b.words) {
			return 0, false
		}
		w = b.words[wi]
	}
}

// FindNextClear returns the lowest used slot at or after from.
func (b *Bitmap) FindNextClear(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	if from >= b.capacity {
		return 0, false
	}
	wi := from / wordBits
	w := ^b.words[wi] &^ ((uint64(1) << (from % wordBits)) - 1)
	for {
		if w != 0 {
			i := wi*wordBits + bits.TrailingZeros64(w)
			if i >= b.capacity {
				return 0, false
			}
			return i, true
		}
		wi++
		if wi >= len(b.words) {
			return 0, false
		}
		w = ^b.words[wi]
	}
}

// FindSetRun returns the lowest index i such that slots [i, i+count) are all
// free, or false if there is no such run.
func (b *Bitmap) FindSetRun(count int) (int, bool, error) {
	if count <= 0 {
		return 0, false, ErrEmptyRun
	}
	start := 0
	for {
		i, ok := b.FindNextSet(start)
		if !ok || i+count > b.capacity {
			return 0, false, nil
		}
		end, ok := b.FindNextClear(i)
		if !ok {
			end = b.capacity
		}
		if end-i >= count {
			return i, true, nil
		}
		start = end
	}
}

// Reset marks every slot free.
func (b *Bitmap) Reset() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	b.clearTail()
}
