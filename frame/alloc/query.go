package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pageinfo"
	"github.com/joshuapare/framekit/internal/rbtree"
)

// FreeMemCount returns the number of free bytes.
func (a *TreeAllocator) FreeMemCount() uint64 { return a.freeSize.SumUpper() }

// FreePageCount returns the number of free default-size pages.
func (a *TreeAllocator) FreePageCount() uint64 { return a.FreeMemCount() / defaultPage }

// AllocMemCount returns the number of allocated bytes, reserved regions included.
func (a *TreeAllocator) AllocMemCount() uint64 { return a.allocSize.SumUpper() }

// TotalPageCount returns the number of default-size pages in physical memory.
func (a *TreeAllocator) TotalPageCount() uint64 { return uint64(a.pages.Len()) }

// TotalMemCount returns the physical memory boundary in bytes.
func (a *TreeAllocator) TotalMemCount() uint64 { return a.totalMem }

// TrackedMemCount returns the bytes covered by all frames.
func (a *TreeAllocator) TrackedMemCount() uint64 { return a.tracked }

// FrameCount returns the number of frames in both partitions.
func (a *TreeAllocator) FrameCount() int { return a.freeAddr.Len() + a.allocAddr.Len() }

// FreeFrameCount returns the number of free frames.
func (a *TreeAllocator) FreeFrameCount() int { return a.freeAddr.Len() }

// AllocFrameCount returns the number of allocated frames.
func (a *TreeAllocator) AllocFrameCount() int { return a.allocAddr.Len() }

// IsMemoryFrameFree reports whether the page containing addr is free.
func (a *TreeAllocator) IsMemoryFrameFree(addr frame.PhysAddr) bool {
	info, ok := a.pages.Lookup(addr)
	return ok && info.Status == pageinfo.Free
}

// IsFrameIndexFree reports whether default-size page pageIdx is free.
func (a *TreeAllocator) IsFrameIndexFree(pageIdx uint64) bool {
	info, ok := a.pages.At(pageIdx)
	return ok && info.Status == pageinfo.Free
}

// PageInfo returns the page table record for the page containing addr.
func (a *TreeAllocator) PageInfo(addr frame.PhysAddr) (pageinfo.Info, bool) {
	return a.pages.Lookup(addr)
}

// PageCount returns the number of pages with the given status.
func (a *TreeAllocator) PageCount(s pageinfo.Status) int { return a.pages.Count(s) }

// Frame returns a snapshot of frame idx.
func (a *TreeAllocator) Frame(idx int) (Descriptor, bool) {
	if !a.pool.inUse(idx) {
		return Descriptor{}, false
	}
	return a.pool.snapshot(idx), true
}

// FrameContaining returns the frame, free or allocated, containing addr.
func (a *TreeAllocator) FrameContaining(addr frame.PhysAddr) (Descriptor, bool) {
	for _, t := range []*rbtree.Tree{a.freeAddr, a.allocAddr} {
		if i := t.Containing(uint64(addr)); i != rbtree.Nil {
			return a.pool.snapshot(int(i)), true
		}
	}
	return Descriptor{}, false
}

func (a *TreeAllocator) collect(t *rbtree.Tree) []Descriptor {
	out := make([]Descriptor, 0, t.Len())
	t.Ascend(func(i rbtree.Index) bool {
		out = append(out, a.pool.snapshot(int(i)))
		return true
	})
	return out
}

// FreeFrames returns the free frames in address order.
func (a *TreeAllocator) FreeFrames() []Descriptor { return a.collect(a.freeAddr) }

// AllocatedFrames returns the allocated frames in address order.
func (a *TreeAllocator) AllocatedFrames() []Descriptor { return a.collect(a.allocAddr) }

// FreeFramesBySize returns the free frames in (size, base) order, the order in
// which AllocFrame considers them.
func (a *TreeAllocator) FreeFramesBySize() []Descriptor { return a.collect(a.freeSize) }

// Frames returns every frame in address order.
func (a *TreeAllocator) Frames() []Descriptor {
	free, used := a.FreeFrames(), a.AllocatedFrames()
	out := make([]Descriptor, 0, len(free)+len(used))
	for len(free) > 0 && len(used) > 0 {
		if free[0].Base < used[0].Base {
			out, free = append(out, free[0]), free[1:]
		} else {
			out, used = append(out, used[0]), used[1:]
		}
	}
	out = append(out, free...)
	return append(out, used...)
}

// Stats is a point-in-time summary of the allocator.
type Stats struct {
	FreeBytes    uint64 `json:"free_bytes"`
	AllocBytes   uint64 `json:"alloc_bytes"`
	TrackedBytes uint64 `json:"tracked_bytes"`
	TotalBytes   uint64 `json:"total_bytes"`
	FreePages    uint64 `json:"free_pages"`
	TotalPages   uint64 `json:"total_pages"`

	FreeFrames   int    `json:"free_frames"`
	AllocFrames  int    `json:"alloc_frames"`
	SlotsUsed    int    `json:"slots_used"`
	SlotCapacity int    `json:"slot_capacity"`
	LargestFree  uint64 `json:"largest_free"`

	Allocations   uint64 `json:"allocations"`
	Deallocations uint64 `json:"deallocations"`
	Failures      uint64 `json:"failures"`
	Coalesces     uint64 `json:"coalesces"`
	Merges        uint64 `json:"merges"`
	Splits        uint64 `json:"splits"`
}

// Stats returns the current statistics.
func (a *TreeAllocator) Stats() Stats {
	s := Stats{
		FreeBytes:     a.FreeMemCount(),
		AllocBytes:    a.AllocMemCount(),
		TrackedBytes:  a.tracked,
		TotalBytes:    a.totalMem,
		FreePages:     a.FreePageCount(),
		TotalPages:    a.TotalPageCount(),
		FreeFrames:    a.freeAddr.Len(),
		AllocFrames:   a.allocAddr.Len(),
		SlotsUsed:     a.pool.used(),
		SlotCapacity:  a.pool.capacity(),
		Allocations:   a.stats.allocations,
		Deallocations: a.stats.deallocations,
		Failures:      a.stats.failures,
		Coalesces:     a.stats.coalesces,
		Merges:        a.stats.merges,
		Splits:        a.stats.splits,
	}
	if m := a.freeSize.Max(); m != rbtree.Nil {
		s.LargestFree = a.freeSize.Node(m).Key.Hi
	}
	return s
}

// DumpTrees writes the four trees to w for debugging.
func (a *TreeAllocator) DumpTrees(w io.Writer) error {
	label := func(i rbtree.Index) string { return a.pool.snapshot(int(i)).String() }
	for _, t := range []struct {
		name string
		tree *rbtree.Tree
	}{
		{"free by size", a.freeSize},
		{"free by address", a.freeAddr},
		{"alloc by size", a.allocSize},
		{"alloc by address", a.allocAddr},
	} {
		if _, err := fmt.Fprintf(w, "== %s (%d)\n", t.name, t.tree.Len()); err != nil {
			return err
		}
		if err := t.tree.Dump(w, label); err != nil {
			return err
		}
	}
	return nil
}
