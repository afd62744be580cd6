package rbtree

// Get returns the node with the given key, or Nil.
func (t *Tree) Get(key Key) Index {
	h := t.root
	for h != Nil {
		n := t.node(h)
		switch c := key.Compare(n.Key); {
		case c < 0:
			h = n.left
		case c > 0:
			h = n.right
		default:
			return h
		}
	}
	return Nil
}

// Contains reports whether a node with the given key is linked.
func (t *Tree) Contains(key Key) bool { return t.Get(key) != Nil }

// Min returns the node with the smallest key, or Nil.
func (t *Tree) Min() Index {
	h := t.root
	if h == Nil {
		return Nil
	}
	for t.node(h).left != Nil {
		h = t.node(h).left
	}
	return h
}

// Max returns the node with the largest key, or Nil.
func (t *Tree) Max() Index {
	h := t.root
	if h == Nil {
		return Nil
	}
	for t.node(h).right != Nil {
		h = t.node(h).right
	}
	return h
}

// Floor returns the node with the largest key <= key, or Nil.
func (t *Tree) Floor(key Key) Index {
	best := Nil
	h := t.root
	for h != Nil {
		n := t.node(h)
		switch c := key.Compare(n.Key); {
		case c == 0:
			return h
		case c < 0:
			h = n.left
		default:
			best = h
			h = n.right
		}
	}
	return best
}

// Ceiling returns the node with the smallest key >= key, or Nil.
func (t *Tree) Ceiling(key Key) Index {
	best := Nil
	h := t.root
	for h != Nil {
		n := t.node(h)
		switch c := key.Compare(n.Key); {
		case c == 0:
			return h
		case c > 0:
			h = n.right
		default:
			best = h
			h = n.left
		}
	}
	return best
}

// Successor returns the node with the smallest key strictly greater than key, or Nil.
func (t *Tree) Successor(key Key) Index {
	if key == MaxKey {
		return Nil
	}
	return t.Ceiling(key.Next())
}

// Predecessor returns the node with the largest key strictly less than key, or Nil.
func (t *Tree) Predecessor(key Key) Index {
	best := Nil
	h := t.root
	for h != Nil {
		n := t.node(h)
		if n.Key.Less(key) {
			best = h
			h = n.right
		} else {
			h = n.left
		}
	}
	return best
}

// Select returns the node of rank k (0-based), or Nil if k is out of range.
func (t *Tree) Select(k int) Index {
	if k < 0 || k >= t.Len() {
		return Nil
	}
	h := t.root
	for h != Nil {
		n := t.node(h)
		ls := t.size(n.left)
		switch {
		case k < ls:
			h = n.left
		case k > ls:
			k -= ls + 1
			h = n.right
		default:
			return h
		}
	}
	return Nil
}

// Rank returns the number of keys strictly less than key.
func (t *Tree) Rank(key Key) int {
	r := 0
	h := t.root
	for h != Nil {
		n := t.node(h)
		switch c := key.Compare(n.Key); {
		case c < 0:
			h = n.left
		case c > 0:
			r += 1 + t.size(n.left)
			h = n.right
		default:
			return r + t.size(n.left)
		}
	}
	return r
}

// SumUpper returns the sum of Key.Hi over every node.
func (t *Tree) SumUpper() uint64 {
	var sum uint64
	t.Ascend(func(i Index) bool {
		sum += t.node(i).Key.Hi
		return true
	})
	return sum
}

// SumLower returns the sum of Key.Lo over every node.
func (t *Tree) SumLower() uint64 {
	var sum uint64
	t.Ascend(func(i Index) bool {
		sum += t.node(i).Key.Lo
		return true
	})
	return sum
}

// Ascend calls fn for every node in key order until fn returns false.
// The tree must not be modified during the walk.
func (t *Tree) Ascend(fn func(Index) bool) {
	stack := make([]Index, 0, 64)
	h := t.root
	for h != Nil || len(stack) > 0 {
		for h != Nil {
			stack = append(stack, h)
			h = t.node(h).left
		}
		h = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(h) {
			return
		}
		h = t.node(h).right
	}
}

// Keys returns every key in order.
func (t *Tree) Keys() []Key {
	keys := make([]Key, 0, t.Len())
	t.Ascend(func(i Index) bool {
		keys = append(keys, t.node(i).Key)
		return true
	})
	return keys
}

// Containing returns the node whose range [Key.Hi, Key.Hi+Key.Lo) contains x,
// or Nil. It is meaningful only for trees keyed by (start, length) whose ranges
// do not overlap, where it runs in O(log n).
func (t *Tree) Containing(x uint64) Index {
	h := t.root
	for h != Nil {
		n := t.node(h)
		switch {
		case x < n.Key.Hi:
			h = n.left
		case x-n.Key.Hi < n.Key.Lo:
			return h
		default:
			h = n.right
		}
	}
	return Nil
}
