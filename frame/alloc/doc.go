// Package alloc implements the physical frame allocator.
//
// # Overview
//
// The allocator tracks every byte of physical memory as a set of
// non-overlapping frames. Each frame is a descriptor in a fixed-capacity pool
// whose slots are handed out by a slot bitmap. A descriptor embeds two
// red-black tree nodes, so it is linked into exactly one size-keyed tree and one
// address-keyed tree without any separate node allocation:
//
//	free-by-size     (size, base)  best-fit search
//	free-by-address  (base, size)  containment search, coalescing
//	alloc-by-size    (size, base)  accounting
//	alloc-by-address (base, size)  deallocation lookup
//
// A frame owned by frame.Nobody is free and lives in the free pair; any other
// owner puts it in the alloc pair. Both trees of a pair always hold the same
// set of descriptors.
//
// # Operations
//
//   - AddMemFrame: seed a frame from the platform memory map
//   - AllocFrame(size, pageSize, owner): ceiling-fit allocation aligned to pageSize
//   - AllocFrameFixed(addr, size, pageSize, owner): allocation at an exact address
//   - DeallocFrame(addr, owner): free the allocated frame containing addr
//
// Lower-level state transitions (MarkFrameAllocated, MarkFrameFree,
// SplitFreeFrame, MergeFreeFrames, CoalesceFreeFrames, RemoveFrame) are
// exported for bootstrap code and tests.
//
// # Coalescing
//
// Adjacent free frames are merged by walking the free-by-address tree in
// order. This runs automatically once the number of deallocations since the
// last pass exceeds the coalesce threshold (100 by default), before every
// fixed-address allocation, and before any allocation with a page size larger
// than frame.DefaultPageSize.
//
// # Usage Example
//
//	ta, err := alloc.New(totalPages, alloc.WithZeroer(mem))
//	if err != nil {
//	    return err
//	}
//	if _, err := ta.AddMemFrame(0, 64<<10, true, 0, frame.Nobody); err != nil {
//	    return err
//	}
//
//	addr, err := ta.AllocFrame(8<<10, frame.Small, frame.Kernel)
//	if err != nil {
//	    return err
//	}
//	defer ta.DeallocFrame(addr, frame.Kernel)
//
// # Concurrency
//
// A TreeAllocator performs no locking. Callers serialize access; the pmm
// package provides a lock-guarded handle.
//
// # Debugging
//
// Set FRAMEKIT_LOG_ALLOC=1 to log allocator decisions at debug level.
package alloc
