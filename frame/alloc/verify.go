package alloc

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/internal/rbtree"
)

// Verify checks the allocator invariants and reports every violation found:
//
//   - each tree is a valid red-black tree
//   - both trees of a partition hold the same descriptors under matching keys
//   - free frames are owned by Nobody and allocated frames are not
//   - frames never overlap, within or across partitions
//   - the slot bitmap marks exactly the linked descriptors as used
//   - free and allocated bytes add up to the tracked bytes
func (a *TreeAllocator) Verify() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...))
	}

	for _, t := range []struct {
		name string
		tree *rbtree.Tree
	}{
		{"free-by-size", a.freeSize},
		{"free-by-address", a.freeAddr},
		{"alloc-by-size", a.allocSize},
		{"alloc-by-address", a.allocAddr},
	} {
		if err := t.tree.Verify(); err != nil {
			fail("%s: %v", t.name, err)
		}
	}
	if result != nil {
		// Walking a malformed tree can loop or miss nodes.
		return result.ErrorOrNil()
	}

	seen := make(map[int]bool)
	checkPartition := func(name string, bySize, byAddr *rbtree.Tree, free bool) {
		if bySize.Len() != byAddr.Len() {
			fail("%s: size tree has %d frames, address tree %d", name, bySize.Len(), byAddr.Len())
		}
		var prevEnd uint64
		first := true
		byAddr.Ascend(func(i rbtree.Index) bool {
			idx := int(i)
			d := a.pool.get(idx)
			seen[idx] = true
			if !a.pool.inUse(idx) {
				fail("%s: frame %d linked but its slot is free", name, idx)
			}
			if (d.owner == frame.Nobody) != free {
				fail("%s: frame %d has owner %s", name, idx, d.owner)
			}
			if d.addrNode.Key != d.addrKey() || d.addrNode.Value != i {
				fail("%s: frame %d address key %s does not match [%#x, +%#x)", name, idx, d.addrNode.Key, d.base, d.size)
			}
			if bySize.Get(d.sizeKey()) != i {
				fail("%s: frame %d missing from size tree", name, idx)
			}
			if d.size == 0 || d.base%defaultPage != 0 || d.size%defaultPage != 0 {
				fail("%s: frame %d [%#x, +%#x) is not page granular", name, idx, d.base, d.size)
			}
			if !first && d.base < prevEnd {
				fail("%s: frame %d at %#x overlaps previous frame ending at %#x", name, idx, d.base, prevEnd)
			}
			first = false
			prevEnd = d.end()
			return true
		})
	}
	checkPartition("free", a.freeSize, a.freeAddr, true)
	checkPartition("alloc", a.allocSize, a.allocAddr, false)

	frames := a.Frames()
	for k := 1; k < len(frames); k++ {
		if frames[k].Base < frames[k-1].End() {
			fail("frames %s and %s overlap", frames[k-1], frames[k])
		}
	}

	if used := a.pool.used(); used != len(seen) {
		fail("slot bitmap has %d slots in use, trees link %d frames", used, len(seen))
	}
	if got := a.FreeMemCount() + a.AllocMemCount(); got != a.tracked {
		fail("free %#x + alloc %#x != tracked %#x", a.FreeMemCount(), a.AllocMemCount(), a.tracked)
	}
	if result != nil {
		a.log.Error("allocator verification failed", "violations", len(result.Errors))
	}
	return result.ErrorOrNil()
}
