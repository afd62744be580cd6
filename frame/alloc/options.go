package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/framekit/frame"
)

// DefaultCoalesceThreshold is the number of deallocations tolerated between
// automatic coalescing passes.
const DefaultCoalesceThreshold = 100

// Option configures a TreeAllocator.
type Option func(*TreeAllocator) error

// Zeroer clears physical memory handed out by the allocator.
type Zeroer interface {
	Zero(base frame.PhysAddr, size uint64) error
}

// ZeroFunc adapts a function to the Zeroer interface.
type ZeroFunc func(base frame.PhysAddr, size uint64) error

// Zero calls f(base, size).
func (f ZeroFunc) Zero(base frame.PhysAddr, size uint64) error { return f(base, size) }

type nopZeroer struct{}

func (nopZeroer) Zero(frame.PhysAddr, uint64) error { return nil }

// WithCoalesceThreshold sets how many deallocations may happen before the
// free frames are coalesced automatically.
func WithCoalesceThreshold(n int) Option {
	return func(a *TreeAllocator) error {
		if n < 0 {
			return fmt.Errorf("alloc: negative coalesce threshold %d", n)
		}
		a.coalesceThreshold = n
		return nil
	}
}

// WithZeroer sets the backend that zero-fills newly allocated frames.
func WithZeroer(z Zeroer) Option {
	return func(a *TreeAllocator) error {
		if z == nil {
			z = nopZeroer{}
		}
		a.zeroer = z
		return nil
	}
}

// WithLogger sets the logger for allocator decisions.
func WithLogger(l *slog.Logger) Option {
	return func(a *TreeAllocator) error {
		if l != nil {
			a.log = l
		}
		return nil
	}
}

// WithTotalMemory sets the physical memory boundary reported by TotalMemCount.
func WithTotalMemory(bytes uint64) Option {
	return func(a *TreeAllocator) error {
		a.totalMem = bytes
		return nil
	}
}

// WithTotalPages sizes the page info table. It defaults to the pool capacity.
func WithTotalPages(n int) Option {
	return func(a *TreeAllocator) error {
		if n < 0 {
			return fmt.Errorf("alloc: negative page count %d", n)
		}
		a.totalPages = n
		return nil
	}
}
