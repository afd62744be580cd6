package alloc

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pageinfo"
	"github.com/joshuapare/framekit/internal/buf"
	"github.com/joshuapare/framekit/internal/logger"
	"github.com/joshuapare/framekit/internal/rbtree"
)

// defaultPage is the granularity of every frame.
var defaultPage = frame.DefaultPageSize.Bytes()

// TreeAllocator tracks physical memory as free and allocated frames indexed by
// four red-black trees over one descriptor pool.
type TreeAllocator struct {
	pool *pool

	freeSize  *rbtree.Tree
	freeAddr  *rbtree.Tree
	allocSize *rbtree.Tree
	allocAddr *rbtree.Tree

	pages      *pageinfo.Table
	totalPages int
	totalMem   uint64

	// bytes covered by all tracked frames, free or allocated
	tracked uint64

	zeroer Zeroer
	log    *slog.Logger

	coalesceThreshold     int
	deallocsSinceCoalesce int

	stats counters
}

// counters are the monotonically increasing operation counts.
type counters struct {
	allocations   uint64
	deallocations uint64
	failures      uint64
	coalesces     uint64
	merges        uint64
	splits        uint64
}

// New returns an allocator whose pool holds capacity descriptors. Capacity is
// normally the number of default-size pages in physical memory, the largest
// number of fragments the memory can be split into.
func New(capacity int, opts ...Option) (*TreeAllocator, error) {
	if capacity <= 0 || uint64(capacity) >= uint64(rbtree.Nil) {
		return nil, fmt.Errorf("%w: pool capacity %d", ErrBadSize, capacity)
	}
	p := newPool(capacity)
	a := &TreeAllocator{
		pool:              p,
		freeSize:          rbtree.New(p.sizeNode),
		freeAddr:          rbtree.New(p.addrNode),
		allocSize:         rbtree.New(p.sizeNode),
		allocAddr:         rbtree.New(p.addrNode),
		totalPages:        capacity,
		zeroer:            nopZeroer{},
		log:               logger.For("alloc"),
		coalesceThreshold: DefaultCoalesceThreshold,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.totalMem == 0 {
		a.totalMem = uint64(a.totalPages) * defaultPage
	}
	a.pages = pageinfo.New(a.totalPages)
	return a, nil
}

// Capacity returns the number of descriptor slots.
func (a *TreeAllocator) Capacity() int { return a.pool.capacity() }

// ============================================================================
// Tree membership
// ============================================================================

func (a *TreeAllocator) treesFor(owner frame.Owner) (bySize, byAddr *rbtree.Tree) {
	if owner == frame.Nobody {
		return a.freeSize, a.freeAddr
	}
	return a.allocSize, a.allocAddr
}

// link inserts descriptor idx into both trees of its partition. Keys are
// derived from the descriptor's current range.
func (a *TreeAllocator) link(idx int) {
	d := a.pool.get(idx)
	d.sizeNode.Key = d.sizeKey()
	d.sizeNode.Value = rbtree.Index(idx)
	d.addrNode.Key = d.addrKey()
	d.addrNode.Value = rbtree.Index(idx)

	bySize, byAddr := a.treesFor(d.owner)
	if old, dup := bySize.Put(rbtree.Index(idx)); dup {
		panic(fmt.Sprintf("alloc: frame %d displaced frame %d in size tree", idx, old))
	}
	if old, dup := byAddr.Put(rbtree.Index(idx)); dup {
		panic(fmt.Sprintf("alloc: frame %d displaced frame %d in address tree", idx, old))
	}
}

// unlink removes descriptor idx from both trees of its partition. It must run
// before any field that feeds a key is changed.
func (a *TreeAllocator) unlink(idx int) {
	d := a.pool.get(idx)
	bySize, byAddr := a.treesFor(d.owner)
	if got, ok := bySize.Delete(d.sizeKey()); !ok || got != rbtree.Index(idx) {
		panic(fmt.Sprintf("alloc: frame %d missing from size tree", idx))
	}
	if got, ok := byAddr.Delete(d.addrKey()); !ok || got != rbtree.Index(idx) {
		panic(fmt.Sprintf("alloc: frame %d missing from address tree", idx))
	}
}

// pageStatus maps an owner to the status recorded in the page table.
func pageStatus(owner frame.Owner) pageinfo.Status {
	switch owner {
	case frame.Nobody:
		return pageinfo.Free
	case frame.Reserved, frame.Firmware, frame.Uefi, frame.Verboten:
		return pageinfo.Reserved
	default:
		return pageinfo.Alloc
	}
}

func (a *TreeAllocator) updatePages(idx int) {
	d := a.pool.get(idx)
	a.pages.Update(frame.PhysAddr(d.base), d.size, pageStatus(d.owner), d.owner)
}

// lookup validates a public frame index.
func (a *TreeAllocator) lookup(idx int) (*descriptor, error) {
	if !a.pool.inUse(idx) {
		return nil, fmt.Errorf("%w: %d", ErrBadIndex, idx)
	}
	return a.pool.get(idx), nil
}

// overlapping returns a frame in tree byAddr overlapping [base, end), or -1.
func overlapping(byAddr *rbtree.Tree, base, end uint64) int {
	i := byAddr.Floor(rbtree.MakeKey(end-1, math.MaxUint64))
	if i == rbtree.Nil {
		return -1
	}
	k := byAddr.Node(i).Key
	if buf.Overlaps(k.Hi, k.Hi+k.Lo, base, end) {
		return int(i)
	}
	return -1
}

// ============================================================================
// Frame state transitions
// ============================================================================

// AddMemFrame seeds a frame covering [base, base+size). Free frames are owned
// by Nobody; allocated frames need a real owner. It returns the frame index.
func (a *TreeAllocator) AddMemFrame(base frame.PhysAddr, size uint64, isFree bool, flags uint32, owner frame.Owner) (int, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: empty frame at %s", ErrBadSize, base)
	}
	if !base.IsAligned(defaultPage) || size%defaultPage != 0 {
		return 0, fmt.Errorf("%w: frame [%s, +%#x)", ErrMisaligned, base, size)
	}
	end, err := buf.RangeEnd(uint64(base), size)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadSize, err)
	}
	if isFree {
		owner = frame.Nobody
	} else if owner == frame.Nobody {
		return 0, fmt.Errorf("%w: frame at %s", ErrBadOwner, base)
	}
	for _, t := range []*rbtree.Tree{a.freeAddr, a.allocAddr} {
		if other := overlapping(t, uint64(base), end); other >= 0 {
			return 0, fmt.Errorf("%w: [%s, %s) and %s", ErrOverlap, base, frame.PhysAddr(end), a.pool.snapshot(other))
		}
	}

	idx, err := a.pool.alloc()
	if err != nil {
		return 0, err
	}
	d := a.pool.get(idx)
	d.base = uint64(base)
	d.size = size
	d.owner = owner
	d.flags = flags
	a.link(idx)
	a.tracked += size
	a.updatePages(idx)
	a.log.Debug("add frame", "index", idx, "base", base, "size", size, "owner", owner)
	return idx, nil
}

// MarkFrameAllocated moves a free frame to the allocated partition under
// owner. It is a no-op for a frame that is already allocated.
func (a *TreeAllocator) MarkFrameAllocated(idx int, owner frame.Owner) error {
	d, err := a.lookup(idx)
	if err != nil {
		return err
	}
	if owner == frame.Nobody {
		return fmt.Errorf("%w: frame %d", ErrBadOwner, idx)
	}
	if d.owner != frame.Nobody {
		return nil
	}
	a.unlink(idx)
	d.owner = owner
	a.link(idx)
	a.updatePages(idx)
	return nil
}

// MarkFrameFree moves an allocated frame back to the free partition. The
// frame must be held by owner; otherwise nothing changes. Freeing a frame
// that is already free is a no-op.
func (a *TreeAllocator) MarkFrameFree(idx int, owner frame.Owner) error {
	d, err := a.lookup(idx)
	if err != nil {
		return err
	}
	if d.owner == frame.Nobody {
		return nil
	}
	if d.owner != owner {
		a.log.Debug("owner mismatch", "index", idx, "owner", d.owner, "caller", owner)
		return fmt.Errorf("%w: %s holds frame %d, not %s", ErrOwnerMismatch, d.owner, idx, owner)
	}
	a.unlink(idx)
	d.owner = frame.Nobody
	a.link(idx)
	a.updatePages(idx)
	return nil
}

// SplitFreeFrame cuts a free frame in two at leftSize, rounded up to the
// default page size. idx keeps the left piece. ErrNoSplit means
// the frame is already exactly leftSize and can be used as it is.
func (a *TreeAllocator) SplitFreeFrame(idx int, leftSize uint64) (left, right int, err error) {
	d, err := a.lookup(idx)
	if err != nil {
		return 0, 0, err
	}
	if d.owner != frame.Nobody {
		return 0, 0, fmt.Errorf("%w: split of frame %d", ErrNotFree, idx)
	}
	aligned := frame.AlignUp(leftSize, defaultPage)
	switch {
	case leftSize == 0 || aligned < leftSize || aligned > d.size:
		return 0, 0, fmt.Errorf("%w: %#x of %#x", ErrInvalidSplit, leftSize, d.size)
	case aligned == d.size:
		return idx, 0, ErrNoSplit
	}

	right, err = a.pool.alloc()
	if err != nil {
		return 0, 0, err
	}
	a.unlink(idx)
	rest := d.size - aligned
	d.size = aligned
	a.link(idx)

	r := a.pool.get(right)
	r.base = d.base + aligned
	r.size = rest
	r.owner = frame.Nobody
	r.flags = d.flags
	a.link(right)

	a.updatePages(idx)
	a.updatePages(right)
	a.stats.splits++
	return idx, right, nil
}

// MergeFreeFrames joins two address-adjacent free frames. The left index
// survives and the right descriptor is retired.
func (a *TreeAllocator) MergeFreeFrames(left, right int) (int, error) {
	l, err := a.lookup(left)
	if err != nil {
		return 0, err
	}
	r, err := a.lookup(right)
	if err != nil {
		return 0, err
	}
	if l.owner != frame.Nobody || r.owner != frame.Nobody {
		return 0, fmt.Errorf("%w: merge of %d and %d", ErrNotFree, left, right)
	}
	if left == right || l.end() != r.base {
		return 0, fmt.Errorf("%w: %s and %s", ErrNotAdjacent, a.pool.snapshot(left), a.pool.snapshot(right))
	}
	a.merge(left, right)
	return left, nil
}

// merge assumes both frames are free and adjacent.
func (a *TreeAllocator) merge(left, right int) {
	l := a.pool.get(left)
	grow := a.pool.get(right).size
	a.unlink(left)
	a.retire(right)
	l.size += grow
	a.link(left)
	a.stats.merges++
}

// CoalesceFreeFrames merges every run of address-adjacent free frames and
// returns the number of merges performed.
func (a *TreeAllocator) CoalesceFreeFrames() int {
	merged := 0
	cur := a.freeAddr.Min()
	for cur != rbtree.Nil {
		next := a.freeAddr.Successor(a.freeAddr.Node(cur).Key)
		if next == rbtree.Nil {
			break
		}
		if a.pool.get(int(cur)).end() == a.pool.get(int(next)).base {
			a.merge(int(cur), int(next))
			merged++
			continue
		}
		cur = next
	}
	a.stats.coalesces++
	if merged > 0 {
		a.log.Debug("coalesce", "merged", merged, "free_frames", a.freeAddr.Len())
	}
	return merged
}

// RemoveFrame drops a frame from tracking entirely and releases its slot.
func (a *TreeAllocator) RemoveFrame(idx int) error {
	d, err := a.lookup(idx)
	if err != nil {
		return err
	}
	a.pages.Update(frame.PhysAddr(d.base), d.size, pageinfo.Missing, frame.Nobody)
	a.tracked -= d.size
	a.retire(idx)
	return nil
}

// retire unlinks idx from whichever partition holds it and frees the slot.
func (a *TreeAllocator) retire(idx int) {
	a.unlink(idx)
	a.pool.release(idx)
}
