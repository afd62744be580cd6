package rbtree

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrOrder indicates keys that are not strictly increasing in order.
	ErrOrder = errors.New("rbtree: keys out of order")
	// ErrColor indicates a red right link, two reds in a row, or a red root.
	ErrColor = errors.New("rbtree: color violation")
	// ErrBalance indicates unequal black height.
	ErrBalance = errors.New("rbtree: black height mismatch")
	// ErrSize indicates a stale subtree size.
	ErrSize = errors.New("rbtree: subtree size mismatch")
)

// Verify checks the ordering, color, balance and size invariants and returns
// the first violation found.
func (t *Tree) Verify() error {
	if t.isRed(t.root) {
		return fmt.Errorf("%w: red root %d", ErrColor, t.root)
	}
	if _, err := t.verify(t.root, nil, nil); err != nil {
		return err
	}
	return nil
}

// verify returns the black height of h.
func (t *Tree) verify(h Index, lo, hi *Key) (int, error) {
	if h == Nil {
		return 1, nil
	}
	n := t.node(h)
	if lo != nil && !lo.Less(n.Key) {
		return 0, fmt.Errorf("%w: node %d key %s not above %s", ErrOrder, h, n.Key, *lo)
	}
	if hi != nil && !n.Key.Less(*hi) {
		return 0, fmt.Errorf("%w: node %d key %s not below %s", ErrOrder, h, n.Key, *hi)
	}
	if t.isRed(n.right) {
		return 0, fmt.Errorf("%w: node %d has a red right child", ErrColor, h)
	}
	if n.red && t.isRed(n.left) {
		return 0, fmt.Errorf("%w: node %d and its left child are both red", ErrColor, h)
	}
	key := n.Key
	lh, err := t.verify(n.left, lo, &key)
	if err != nil {
		return 0, err
	}
	rh, err := t.verify(n.right, &key, hi)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("%w: node %d left %d right %d", ErrBalance, h, lh, rh)
	}
	if want := t.size(n.left) + t.size(n.right) + 1; int(n.n) != want {
		return 0, fmt.Errorf("%w: node %d has %d want %d", ErrSize, h, n.n, want)
	}
	if !n.red {
		lh++
	}
	return lh, nil
}

// Dump writes the tree sideways, right subtree on top, one node per line.
// label formats a node; nil prints keys.
func (t *Tree) Dump(w io.Writer, label func(Index) string) error {
	if label == nil {
		label = func(i Index) string { return t.node(i).Key.String() }
	}
	return t.dump(w, t.root, 0, label)
}

func (t *Tree) dump(w io.Writer, h Index, depth int, label func(Index) string) error {
	if h == Nil {
		return nil
	}
	n := t.node(h)
	if err := t.dump(w, n.right, depth+1, label); err != nil {
		return err
	}
	color := "B"
	if n.red {
		color = "R"
	}
	if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("    ", depth), color, label(h)); err != nil {
		return err
	}
	return t.dump(w, n.left, depth+1, label)
}
