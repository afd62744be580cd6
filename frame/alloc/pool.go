package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pageinfo"
	"github.com/joshuapare/framekit/internal/bitmap"
	"github.com/joshuapare/framekit/internal/rbtree"
)

// descriptor is one pool slot. sizeNode links it into the size tree of its
// partition, addrNode into the address tree.
type descriptor struct {
	base  uint64
	size  uint64
	owner frame.Owner
	flags uint32

	sizeNode rbtree.Node
	addrNode rbtree.Node
}

// DescriptorSize is the in-memory footprint of one pool slot.
const DescriptorSize = uint64(unsafe.Sizeof(descriptor{}))

func (d *descriptor) end() uint64 { return d.base + d.size }

func (d *descriptor) sizeKey() rbtree.Key { return rbtree.MakeKey(d.size, d.base) }

func (d *descriptor) addrKey() rbtree.Key { return rbtree.MakeKey(d.base, d.size) }

// pool is the fixed-capacity descriptor arena.
type pool struct {
	descs []descriptor
	slots *bitmap.Bitmap
}

func newPool(capacity int) *pool {
	p := &pool{
		descs: make([]descriptor, capacity),
		slots: bitmap.New(capacity),
	}
	for i := range p.descs {
		p.descs[i].sizeNode.Reset()
		p.descs[i].addrNode.Reset()
	}
	return p
}

func (p *pool) capacity() int { return len(p.descs) }

func (p *pool) used() int { return p.slots.ClearCount() }

// alloc takes a free slot.
func (p *pool) alloc() (int, error) {
	idx, ok := p.slots.AllocSlot()
	if !ok {
		return 0, fmt.Errorf("%w: capacity %d", ErrNoSlot, p.capacity())
	}
	return idx, nil
}

// release zeroes the slot and returns it to the bitmap. Releasing a slot that
// is not in use means the trees and the bitmap disagree.
func (p *pool) release(idx int) {
	p.descs[idx] = descriptor{}
	p.descs[idx].sizeNode.Reset()
	p.descs[idx].addrNode.Reset()
	if err := p.slots.DeallocSlot(idx); err != nil {
		panic(fmt.Sprintf("alloc: release of slot %d: %v", idx, err))
	}
}

// inUse reports whether idx names a live descriptor.
func (p *pool) inUse(idx int) bool {
	return idx >= 0 && idx < len(p.descs) && !p.slots.IsSet(idx)
}

func (p *pool) get(idx int) *descriptor { return &p.descs[idx] }

func (p *pool) sizeNode(i rbtree.Index) *rbtree.Node { return &p.descs[i].sizeNode }

func (p *pool) addrNode(i rbtree.Index) *rbtree.Node { return &p.descs[i].addrNode }

// FootprintBytes returns the memory the allocator's own structures occupy for
// a pool of capacity slots tracking totalPages pages.
func FootprintBytes(capacity, totalPages int) uint64 {
	words := (uint64(capacity) + 63) / 64
	return uint64(capacity)*DescriptorSize + words*8 + uint64(totalPages)*pageinfo.RecordSize
}

// Descriptor is a read-only snapshot of a frame.
type Descriptor struct {
	Index int
	Base  frame.PhysAddr
	Size  uint64
	Owner frame.Owner
	Flags uint32
}

// End returns the first address past the frame.
func (d Descriptor) End() frame.PhysAddr { return d.Base.Add(d.Size) }

// Free reports whether the frame is in the free partition.
func (d Descriptor) Free() bool { return d.Owner == frame.Nobody }

// Pages returns the frame length in default-size pages.
func (d Descriptor) Pages() uint64 { return d.Size / frame.DefaultPageSize.Bytes() }

func (d Descriptor) String() string {
	return fmt.Sprintf("#%d [%s, %s) %s", d.Index, d.Base, d.End(), d.Owner)
}

func (p *pool) snapshot(idx int) Descriptor {
	d := p.get(idx)
	return Descriptor{
		Index: idx,
		Base:  frame.PhysAddr(d.base),
		Size:  d.size,
		Owner: d.owner,
		Flags: d.flags,
	}
}
