package rbtree

import (
	"fmt"
	"math"
)

// Key is a composite sort key ordered lexicographically by (Hi, Lo).
type Key struct {
	Hi, Lo uint64
}

// MaxKey is the largest key.
var MaxKey = Key{Hi: math.MaxUint64, Lo: math.MaxUint64}

// MakeKey returns the key (hi, lo).
func MakeKey(hi, lo uint64) Key { return Key{Hi: hi, Lo: lo} }

// Compare returns -1, 0 or +1 as k is less than, equal to or greater than o.
func (k Key) Compare(o Key) int {
	switch {
	case k.Hi < o.Hi:
		return -1
	case k.Hi > o.Hi:
		return 1
	case k.Lo < o.Lo:
		return -1
	case k.Lo > o.Lo:
		return 1
	}
	return 0
}

// Less reports whether k orders before o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// Next returns the smallest key greater than k. Next of MaxKey wraps to the zero key.
func (k Key) Next() Key {
	if k.Lo == math.MaxUint64 {
		return Key{Hi: k.Hi + 1}
	}
	return Key{Hi: k.Hi, Lo: k.Lo + 1}
}

func (k Key) String() string {
	return fmt.Sprintf("(%#x, %#x)", k.Hi, k.Lo)
}
