// Package rbtree implements an intrusive left-leaning red-black tree.
//
// The tree never owns node storage. Each Node is embedded in a record that
// lives in a caller-managed arena and is addressed by its Index; the tree only
// rewires the link, color and size fields of nodes handed to it. Deleting a
// node unlinks it and returns its index so the caller can reclaim the record.
//
// Keys are unique within a tree. Every record keeps its own key for its whole
// membership: deletion relinks the in-order successor node into the vacated
// position instead of copying keys between records.
package rbtree

import (
	"math"
)

// Index addresses a node in the caller's arena.
type Index uint32

// Nil is the absent link.
const Nil Index = math.MaxUint32

// Node is the intrusive tree hook. Callers set Key and Value before Put and
// must not modify Key while the node is linked.
type Node struct {
	Key   Key
	Value Index

	left, right Index
	red         bool
	n           uint32
}

// Left returns the left child link.
func (n *Node) Left() Index { return n.left }

// Right returns the right child link.
func (n *Node) Right() Index { return n.right }

// IsRed reports the node color.
func (n *Node) IsRed() bool { return n.red }

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node) Size() int { return int(n.n) }

// Reset unlinks n. It does not touch the tree n was in.
func (n *Node) Reset() {
	n.left, n.right = Nil, Nil
	n.red = false
	n.n = 0
}

// NodeFunc resolves an arena index to its embedded node.
type NodeFunc func(Index) *Node

// Tree is a left-leaning red-black tree over externally owned nodes.
// It is not safe for concurrent use.
type Tree struct {
	root Index
	node NodeFunc
}

// New returns an empty tree resolving nodes through fn.
func New(fn NodeFunc) *Tree {
	return &Tree{root: Nil, node: fn}
}

// Root returns the root index, or Nil for an empty tree.
func (t *Tree) Root() Index { return t.root }

// Node resolves i. It panics on Nil.
func (t *Tree) Node(i Index) *Node {
	if i == Nil {
		panic("rbtree: resolve of nil link")
	}
	return t.node(i)
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return t.size(t.root) }

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool { return t.root == Nil }

func (t *Tree) size(i Index) int {
	if i == Nil {
		return 0
	}
	return int(t.node(i).n)
}

func (t *Tree) isRed(i Index) bool {
	return i != Nil && t.node(i).red
}

func (t *Tree) leftOf(i Index) Index {
	if i == Nil {
		return Nil
	}
	return t.node(i).left
}

// ============================================================================
// Insertion
// ============================================================================

// Put links node i into the tree under its current Key. If a node with an equal
// key is already linked, i takes its place and the displaced index is returned
// with ok set.
func (t *Tree) Put(i Index) (replaced Index, ok bool) {
	replaced = Nil
	n := t.Node(i)
	n.left, n.right = Nil, Nil
	n.red = true
	n.n = 1
	t.root = t.put(t.root, i, &replaced)
	t.node(t.root).red = false
	return replaced, replaced != Nil
}

func (t *Tree) put(h, i Index, replaced *Index) Index {
	if h == Nil {
		return i
	}
	hn := t.node(h)
	switch c := t.node(i).Key.Compare(hn.Key); {
	case c < 0:
		hn.left = t.put(hn.left, i, replaced)
	case c > 0:
		hn.right = t.put(hn.right, i, replaced)
	default:
		in := t.node(i)
		in.left, in.right, in.red, in.n = hn.left, hn.right, hn.red, hn.n
		hn.Reset()
		*replaced = h
		h = i
	}
	return t.fixUp(h)
}

func (t *Tree) fixUp(h Index) Index {
	if t.isRed(t.node(h).right) && !t.isRed(t.node(h).left) {
		h = t.rotateLeft(h)
	}
	if t.isRed(t.node(h).left) && t.isRed(t.leftOf(t.node(h).left)) {
		h = t.rotateRight(h)
	}
	if t.isRed(t.node(h).left) && t.isRed(t.node(h).right) {
		t.flipColors(h)
	}
	hn := t.node(h)
	hn.n = uint32(t.size(hn.left) + t.size(hn.right) + 1)
	return h
}

func (t *Tree) rotateLeft(h Index) Index {
	hn := t.node(h)
	x := hn.right
	xn := t.node(x)
	hn.right = xn.left
	xn.left = h
	xn.red = hn.red
	hn.red = true
	xn.n = hn.n
	hn.n = uint32(t.size(hn.left) + t.size(hn.right) + 1)
	return x
}

func (t *Tree) rotateRight(h Index) Index {
	hn := t.node(h)
	x := hn.left
	xn := t.node(x)
	hn.left = xn.right
	xn.right = h
	xn.red = hn.red
	hn.red = true
	xn.n = hn.n
	hn.n = uint32(t.size(hn.left) + t.size(hn.right) + 1)
	return x
}

func (t *Tree) flipColors(h Index) {
	hn := t.node(h)
	hn.red = !hn.red
	if hn.left != Nil {
		l := t.node(hn.left)
		l.red = !l.red
	}
	if hn.right != Nil {
		r := t.node(hn.right)
		r.red = !r.red
	}
}

// ============================================================================
// Deletion
// ============================================================================

// Delete unlinks the node with the given key and returns its index.
func (t *Tree) Delete(key Key) (Index, bool) {
	if t.Get(key) == Nil {
		return Nil, false
	}
	root := t.node(t.root)
	if !t.isRed(root.left) && !t.isRed(root.right) {
		root.red = true
	}
	removed := Nil
	t.root = t.delete(t.root, key, &removed)
	if t.root != Nil {
		t.node(t.root).red = false
	}
	t.node(removed).Reset()
	return removed, true
}

// DeleteMin unlinks the smallest node.
func (t *Tree) DeleteMin() (Index, bool) {
	if t.root == Nil {
		return Nil, false
	}
	root := t.node(t.root)
	if !t.isRed(root.left) && !t.isRed(root.right) {
		root.red = true
	}
	removed := Nil
	t.root = t.deleteMin(t.root, &removed)
	if t.root != Nil {
		t.node(t.root).red = false
	}
	t.node(removed).Reset()
	return removed, true
}

func (t *Tree) delete(h Index, key Key, removed *Index) Index {
	if key.Less(t.node(h).Key) {
		if !t.isRed(t.node(h).left) && !t.isRed(t.leftOf(t.node(h).left)) {
			h = t.moveRedLeft(h)
		}
		hn := t.node(h)
		hn.left = t.delete(hn.left, key, removed)
		return t.fixUp(h)
	}

	if t.isRed(t.node(h).left) {
		h = t.rotateRight(h)
	}
	if key.Compare(t.node(h).Key) == 0 && t.node(h).right == Nil {
		*removed = h
		return Nil
	}
	if !t.isRed(t.node(h).right) && !t.isRed(t.leftOf(t.node(h).right)) {
		h = t.moveRedRight(h)
	}
	hn := t.node(h)
	if key.Compare(hn.Key) == 0 {
		// Splice the successor into h's position rather than copying its key.
		succ := Nil
		right := t.deleteMin(hn.right, &succ)
		sn := t.node(succ)
		sn.left = hn.left
		sn.right = right
		sn.red = hn.red
		*removed = h
		h = succ
	} else {
		hn.right = t.delete(hn.right, key, removed)
	}
	return t.fixUp(h)
}

func (t *Tree) deleteMin(h Index, removed *Index) Index {
	if t.node(h).left == Nil {
		*removed = h
		return Nil
	}
	if !t.isRed(t.node(h).left) && !t.isRed(t.leftOf(t.node(h).left)) {
		h = t.moveRedLeft(h)
	}
	hn := t.node(h)
	hn.left = t.deleteMin(hn.left, removed)
	return t.fixUp(h)
}

func (t *Tree) moveRedLeft(h Index) Index {
	t.flipColors(h)
	if r := t.node(h).right; r != Nil && t.isRed(t.node(r).left) {
		t.node(h).right = t.rotateRight(r)
		h = t.rotateLeft(h)
		t.flipColors(h)
	}
	return h
}

func (t *Tree) moveRedRight(h Index) Index {
	t.flipColors(h)
	if t.isRed(t.leftOf(t.node(h).left)) {
		h = t.rotateRight(h)
		t.flipColors(h)
	}
	return h
}
