package alloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/internal/rbtree"
)

// request validates and normalizes an allocation request, returning the size
// rounded up to the page size.
func (a *TreeAllocator) request(size uint64, ps frame.PageSize, owner frame.Owner) (uint64, error) {
	if !ps.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrBadPageSize, ps.Bytes())
	}
	if owner == frame.Nobody {
		return 0, ErrBadOwner
	}
	aligned := frame.AlignUp(size, ps.Bytes())
	if size == 0 || aligned < size {
		return 0, fmt.Errorf("%w: %#x", ErrBadSize, size)
	}
	return aligned, nil
}

// AllocFrame allocates size bytes, rounded up to ps, at an address aligned to
// ps. Candidates are visited in (size, base) order starting from the smallest
// free frame that is large enough; the first one that can hold an aligned
// range of the requested size is used. The memory is zero-filled.
func (a *TreeAllocator) AllocFrame(size uint64, ps frame.PageSize, owner frame.Owner) (frame.PhysAddr, error) {
	alignedSize, err := a.request(size, ps, owner)
	if err != nil {
		a.stats.failures++
		return 0, err
	}
	if ps.Bytes() > defaultPage {
		a.CoalesceFreeFrames()
	}
	align := ps.Bytes()

	for cand := a.freeSize.Ceiling(rbtree.MakeKey(alignedSize, 0)); cand != rbtree.Nil; {
		idx := int(cand)
		d := a.pool.get(idx)
		addr, sz := d.base, d.size

		var target int
		switch {
		case addr%align == 0:
			target, err = a.carve(idx, alignedSize)
		case frame.AlignUp(addr, align)-addr <= sz-alignedSize:
			// Trim the unaligned prefix, then carve from the aligned remainder.
			var right int
			_, right, err = a.SplitFreeFrame(idx, frame.AlignUp(addr, align)-addr)
			if err == nil {
				target, err = a.carve(right, alignedSize)
			}
		default:
			cand = a.freeSize.Successor(rbtree.MakeKey(sz, addr))
			continue
		}
		if err != nil {
			a.stats.failures++
			return 0, err
		}
		return a.commit(target, alignedSize, owner)
	}

	a.stats.failures++
	a.log.Debug("no fit", "size", alignedSize, "page", ps, "free", a.FreeMemCount())
	return 0, fmt.Errorf("%w: %#x bytes at %s alignment", ErrNoFit, alignedSize, ps)
}

// carve splits size bytes off the front of free frame idx when at least a
// default page would remain, and returns the frame to allocate.
func (a *TreeAllocator) carve(idx int, size uint64) (int, error) {
	if a.pool.get(idx).size-size < defaultPage {
		return idx, nil
	}
	left, _, err := a.SplitFreeFrame(idx, size)
	if errors.Is(err, ErrNoSplit) {
		return idx, nil
	}
	return left, err
}

// commit allocates frame idx to owner and zero-fills the first size bytes.
// A failed zero-fill puts the frame back in the free partition.
func (a *TreeAllocator) commit(idx int, size uint64, owner frame.Owner) (frame.PhysAddr, error) {
	if err := a.MarkFrameAllocated(idx, owner); err != nil {
		a.stats.failures++
		return 0, err
	}
	base := frame.PhysAddr(a.pool.get(idx).base)
	if err := a.zeroer.Zero(base, size); err != nil {
		_ = a.MarkFrameFree(idx, owner)
		a.stats.failures++
		return 0, fmt.Errorf("%w: [%s, +%#x): %w", ErrZeroFill, base, size, err)
	}
	a.stats.allocations++
	a.log.Debug("alloc", "index", idx, "base", base, "size", size, "owner", owner)
	return base, nil
}

// AllocFrameFixed allocates size bytes, rounded up to ps, starting exactly at
// addr, which must be aligned to ps. Free frames are coalesced first so that
// avoidable fragmentation cannot block the request. It returns addr.
func (a *TreeAllocator) AllocFrameFixed(addr frame.PhysAddr, size uint64, ps frame.PageSize, owner frame.Owner) (frame.PhysAddr, error) {
	alignedSize, err := a.request(size, ps, owner)
	if err != nil {
		a.stats.failures++
		return 0, err
	}
	if !addr.IsAligned(ps.Bytes()) {
		a.stats.failures++
		return 0, fmt.Errorf("%w: %s for %s pages", ErrMisaligned, addr, ps)
	}
	a.CoalesceFreeFrames()

	cand := a.freeAddr.Containing(uint64(addr))
	if cand == rbtree.Nil {
		a.stats.failures++
		return 0, fmt.Errorf("%w: no free frame contains %s", ErrNoFit, addr)
	}
	idx := int(cand)
	d := a.pool.get(idx)
	offset := uint64(addr) - d.base
	if d.size-offset < alignedSize {
		a.stats.failures++
		return 0, fmt.Errorf("%w: %#x bytes at %s, free frame ends at %s", ErrNoFit, alignedSize, addr, frame.PhysAddr(d.end()))
	}

	if offset != 0 {
		_, idx, err = a.SplitFreeFrame(idx, offset)
		if err != nil {
			a.stats.failures++
			return 0, err
		}
	}
	target, err := a.carve(idx, alignedSize)
	if err != nil {
		a.stats.failures++
		return 0, err
	}
	if _, err := a.commit(target, alignedSize, owner); err != nil {
		return 0, err
	}
	return addr, nil
}

// DeallocFrame frees the allocated frame containing pageBase on behalf of
// owner. A frame held by someone else is left untouched.
func (a *TreeAllocator) DeallocFrame(pageBase frame.PhysAddr, owner frame.Owner) error {
	cand := a.allocAddr.Containing(uint64(pageBase))
	if cand == rbtree.Nil {
		a.stats.failures++
		return fmt.Errorf("%w: %s is not allocated", ErrNotFound, pageBase)
	}
	if err := a.MarkFrameFree(int(cand), owner); err != nil {
		a.stats.failures++
		return err
	}
	a.stats.deallocations++
	a.log.Debug("dealloc", "index", int(cand), "base", pageBase, "owner", owner)

	if a.deallocsSinceCoalesce > a.coalesceThreshold {
		a.CoalesceFreeFrames()
		a.deallocsSinceCoalesce = 0
	} else {
		a.deallocsSinceCoalesce++
	}
	return nil
}
