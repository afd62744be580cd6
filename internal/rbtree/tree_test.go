package rbtree

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arena is a minimal record store with an embedded node, like the frame pool.
type arena struct {
	recs []record
}

type record struct {
	id   int
	node Node
}

func newArena(n int) *arena {
	a := &arena{recs: make([]record, n)}
	for i := range a.recs {
		a.recs[i].id = i
		a.recs[i].node.Reset()
	}
	return a
}

func (a *arena) tree() *Tree {
	return New(func(i Index) *Node { return &a.recs[i].node })
}

func (a *arena) put(t *testing.T, tr *Tree, i int, key Key) {
	t.Helper()
	a.recs[i].node.Key = key
	a.recs[i].node.Value = Index(i)
	_, replaced := tr.Put(Index(i))
	require.False(t, replaced)
}

func assertInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	require.NoError(t, tr.Verify())
}

// ============================================================================
// Basic operations
// ============================================================================

func TestEmptyTree(t *testing.T) {
	tr := newArena(1).tree()
	assert.True(t, tr.Empty())
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, Nil, tr.Min())
	assert.Equal(t, Nil, tr.Max())
	assert.Equal(t, Nil, tr.Ceiling(Key{}))
	assert.Equal(t, Nil, tr.Floor(MaxKey))
	assert.Equal(t, Nil, tr.Select(0))
	assert.Equal(t, 0, tr.Rank(Key{Hi: 5}))
	assert.Equal(t, uint64(0), tr.SumUpper())
	assert.Equal(t, Nil, tr.Containing(0))
	_, ok := tr.Delete(Key{})
	assert.False(t, ok)
	_, ok = tr.DeleteMin()
	assert.False(t, ok)
	assertInvariants(t, tr)
}

func TestPutGetOrdered(t *testing.T) {
	a := newArena(100)
	tr := a.tree()
	for i := 0; i < 100; i++ {
		a.put(t, tr, i, MakeKey(uint64(i%10), uint64(i)))
		assertInvariants(t, tr)
	}
	assert.Equal(t, 100, tr.Len())

	for i := 0; i < 100; i++ {
		got := tr.Get(MakeKey(uint64(i%10), uint64(i)))
		require.Equal(t, Index(i), got)
	}
	assert.Equal(t, Nil, tr.Get(MakeKey(3, 4)))

	keys := tr.Keys()
	assert.True(t, slices.IsSortedFunc(keys, Key.Compare))
	assert.Equal(t, MakeKey(0, 0), tr.Node(tr.Min()).Key)
	assert.Equal(t, MakeKey(9, 99), tr.Node(tr.Max()).Key)
}

func TestPutReplacesEqualKey(t *testing.T) {
	a := newArena(3)
	tr := a.tree()
	a.put(t, tr, 0, MakeKey(1, 1))
	a.put(t, tr, 1, MakeKey(2, 2))

	a.recs[2].node.Key = MakeKey(1, 1)
	old, ok := tr.Put(2)
	require.True(t, ok)
	assert.Equal(t, Index(0), old)
	assert.Equal(t, Index(2), tr.Get(MakeKey(1, 1)))
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, Nil, a.recs[0].node.Left())
	assertInvariants(t, tr)
}

func TestFloorCeilingSuccessor(t *testing.T) {
	a := newArena(5)
	tr := a.tree()
	for i, hi := range []uint64{10, 20, 30, 40, 50} {
		a.put(t, tr, i, MakeKey(hi, 0))
	}

	assert.Equal(t, Index(1), tr.Ceiling(MakeKey(20, 0)))
	assert.Equal(t, Index(2), tr.Ceiling(MakeKey(20, 1)))
	assert.Equal(t, Index(0), tr.Ceiling(MakeKey(0, 0)))
	assert.Equal(t, Nil, tr.Ceiling(MakeKey(50, 1)))

	assert.Equal(t, Index(1), tr.Floor(MakeKey(20, 0)))
	assert.Equal(t, Index(1), tr.Floor(MakeKey(29, 99)))
	assert.Equal(t, Nil, tr.Floor(MakeKey(9, 99)))

	assert.Equal(t, Index(2), tr.Successor(MakeKey(20, 0)))
	assert.Equal(t, Nil, tr.Successor(MakeKey(50, 0)))
	assert.Equal(t, Nil, tr.Successor(MaxKey))
	assert.Equal(t, Index(0), tr.Predecessor(MakeKey(20, 0)))
	assert.Equal(t, Nil, tr.Predecessor(MakeKey(10, 0)))
}

func TestSelectRank(t *testing.T) {
	a := newArena(64)
	tr := a.tree()
	for i := 63; i >= 0; i-- {
		a.put(t, tr, i, MakeKey(uint64(i*2), 0))
	}
	for k := 0; k < 64; k++ {
		i := tr.Select(k)
		require.Equal(t, Index(k), i)
		assert.Equal(t, k, tr.Rank(tr.Node(i).Key))
		assert.Equal(t, k+1, tr.Rank(MakeKey(uint64(k*2+1), 0)))
	}
	assert.Equal(t, Nil, tr.Select(64))
	assert.Equal(t, Nil, tr.Select(-1))
}

func TestSums(t *testing.T) {
	a := newArena(4)
	tr := a.tree()
	a.put(t, tr, 0, MakeKey(0x1000, 0x0))
	a.put(t, tr, 1, MakeKey(0x2000, 0x1000))
	a.put(t, tr, 2, MakeKey(0x3000, 0x3000))
	assert.Equal(t, uint64(0x6000), tr.SumUpper())
	assert.Equal(t, uint64(0x4000), tr.SumLower())
}

func TestKeyNext(t *testing.T) {
	assert.Equal(t, MakeKey(1, 1), MakeKey(1, 0).Next())
	assert.Equal(t, MakeKey(2, 0), MakeKey(1, ^uint64(0)).Next())
	assert.True(t, MakeKey(1, 5).Less(MakeKey(2, 0)))
	assert.Equal(t, 0, MakeKey(3, 3).Compare(MakeKey(3, 3)))
}

// ============================================================================
// Deletion keeps records intact
// ============================================================================

func TestDeleteRelinksSuccessor(t *testing.T) {
	a := newArena(32)
	tr := a.tree()
	for i := 0; i < 32; i++ {
		a.put(t, tr, i, MakeKey(uint64(i), uint64(100+i)))
	}

	// The root has two children, so its successor gets spliced in.
	root := tr.Root()
	rootKey := tr.Node(root).Key
	got, ok := tr.Delete(rootKey)
	require.True(t, ok)
	assert.Equal(t, root, got)
	assertInvariants(t, tr)

	// Every other record still carries the key it was inserted with.
	for i := 0; i < 32; i++ {
		if Index(i) == root {
			continue
		}
		key := MakeKey(uint64(i), uint64(100+i))
		assert.Equal(t, key, a.recs[i].node.Key)
		assert.Equal(t, Index(i), tr.Get(key))
	}
	assert.Equal(t, Nil, tr.Get(rootKey))
	assert.Equal(t, Nil, a.recs[root].node.Left())
	assert.Equal(t, Nil, a.recs[root].node.Right())
	assert.Equal(t, 31, tr.Len())
}

func TestDeleteMin(t *testing.T) {
	a := newArena(20)
	tr := a.tree()
	for i := 19; i >= 0; i-- {
		a.put(t, tr, i, MakeKey(uint64(i), 0))
	}
	for i := 0; i < 20; i++ {
		got, ok := tr.DeleteMin()
		require.True(t, ok)
		require.Equal(t, Index(i), got)
		assertInvariants(t, tr)
	}
	assert.True(t, tr.Empty())
}

func TestRandomizedAgainstModel(t *testing.T) {
	const n = 512
	rng := rand.New(rand.NewPCG(7, 11))
	a := newArena(n)
	tr := a.tree()
	linked := make(map[int]Key)

	for step := 0; step < 5000; step++ {
		i := rng.IntN(n)
		if key, ok := linked[i]; ok {
			got, ok := tr.Delete(key)
			require.True(t, ok)
			require.Equal(t, Index(i), got)
			delete(linked, i)
		} else {
			key := MakeKey(rng.Uint64N(64), uint64(i))
			a.put(t, tr, i, key)
			linked[i] = key
		}
		if step%50 == 0 {
			assertInvariants(t, tr)
		}
		require.Equal(t, len(linked), tr.Len())
	}
	assertInvariants(t, tr)

	want := make([]Key, 0, len(linked))
	for _, k := range linked {
		want = append(want, k)
	}
	slices.SortFunc(want, Key.Compare)
	assert.Equal(t, want, tr.Keys())
	for i, k := range linked {
		assert.Equal(t, k, a.recs[i].node.Key, "record %d lost its key", i)
	}
}

// ============================================================================
// Containment search
// ============================================================================

func TestContaining(t *testing.T) {
	a := newArena(4)
	tr := a.tree()
	// [0x1000,0x3000) [0x5000,0x6000) [0x6000,0x10000)
	a.put(t, tr, 0, MakeKey(0x1000, 0x2000))
	a.put(t, tr, 1, MakeKey(0x5000, 0x1000))
	a.put(t, tr, 2, MakeKey(0x6000, 0xa000))

	tests := []struct {
		addr uint64
		want Index
	}{
		{0x0, Nil},
		{0xfff, Nil},
		{0x1000, 0},
		{0x2fff, 0},
		{0x3000, Nil},
		{0x4fff, Nil},
		{0x5000, 1},
		{0x5fff, 1},
		{0x6000, 2},
		{0xffff, 2},
		{0x10000, Nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Containing(tt.addr), "addr %#x", tt.addr)
	}
}

func TestDump(t *testing.T) {
	a := newArena(3)
	tr := a.tree()
	for i := 0; i < 3; i++ {
		a.put(t, tr, i, MakeKey(uint64(i), 0))
	}
	var sb strings.Builder
	require.NoError(t, tr.Dump(&sb, nil))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "B (0x1, 0x0)", lines[1])
}

func BenchmarkPutDelete(b *testing.B) {
	const n = 4096
	a := newArena(n)
	tr := a.tree()
	for i := 0; i < n; i++ {
		a.recs[i].node.Key = MakeKey(uint64(i*7%n), uint64(i))
		tr.Put(Index(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		key := a.recs[j].node.Key
		tr.Delete(key)
		a.recs[j].node.Key = key
		tr.Put(Index(j))
	}
}
