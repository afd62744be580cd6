package alloc

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/framekit/frame"
)

// =============================================================================
// Reference scenarios
// =============================================================================

func TestAllocFrame_DeallocCoalesceRoundTrip(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x10000})

	addr, err := a.AllocFrame(0x2000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x0), addr)
	assert.Equal(t, []span{free(0x2000, 0xe000)}, spans(a.FreeFrames()))
	assertInvariants(t, a)

	require.NoError(t, a.DeallocFrame(0x0, frame.Kernel))
	a.CoalesceFreeFrames()
	assert.Equal(t, []span{free(0x0, 0x10000)}, spans(a.FreeFrames()))
	assert.Empty(t, a.AllocatedFrames())
	assertInvariants(t, a)
}

func TestAllocFrameFixed_MidFrame(t *testing.T) {
	a := newAllocator(t, 4)
	seed(t, a, [2]uint64{0x0, 0x4000})
	sys := mustSystem(t, 100)

	addr, err := a.AllocFrameFixed(0x1000, 0x1000, frame.Small, sys)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x1000), addr)
	assert.Equal(t, []span{
		free(0x0, 0x1000),
		{0x1000, 0x1000, sys},
		free(0x2000, 0x2000),
	}, spans(a.Frames()))
	assertInvariants(t, a)
}

// =============================================================================
// AllocFrame
// =============================================================================

func TestAllocFrame_CeilingFit(t *testing.T) {
	a := newAllocator(t, 64)
	seed(t, a,
		[2]uint64{0x0, 0x4000},
		[2]uint64{0x10000, 0x2000},
		[2]uint64{0x20000, 0x8000},
	)

	addr, err := a.AllocFrame(0x2000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x10000), addr, "exact fit wins")

	addr, err = a.AllocFrame(0x2001, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x0), addr, "smallest frame that fits the rounded size")

	addr, err = a.AllocFrame(0x1000, frame.Small, frame.Memory)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x3000), addr)

	_, err = a.AllocFrame(0x9000, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrNoFit)
	assertInvariants(t, a)
	assert.Equal(t, uint64(0x8000), a.FreeMemCount())
}

func TestAllocFrame_LargePageAlignment(t *testing.T) {
	p := midPage().Bytes()
	a := newAllocator(t, int(6*p/4096))
	// Unaligned frame exactly one large page long: cannot host an aligned page.
	seed(t, a, [2]uint64{0x1000, p}, [2]uint64{4 * p, 2 * p})

	addr, err := a.AllocFrame(p, midPage(), frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(4*p), addr)
	assert.True(t, addr.IsAligned(p))
	assert.Equal(t, []span{free(0x1000, p), free(5*p, p)}, spans(a.FreeFrames()))
	assertInvariants(t, a)
}

func TestAllocFrame_TrimsUnalignedPrefixAndSuffix(t *testing.T) {
	p := midPage().Bytes()
	a := newAllocator(t, int(5*p/4096))
	seed(t, a, [2]uint64{0x1000, 4 * p})

	addr, err := a.AllocFrame(p, midPage(), frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(p), addr)
	assert.Equal(t, []span{
		free(0x1000, p-0x1000),
		{p, p, frame.Kernel},
		free(2*p, 2*p+0x1000),
	}, spans(a.Frames()))
	assertInvariants(t, a)
}

func TestAllocFrame_UnalignedNoSuffix(t *testing.T) {
	p := midPage().Bytes()
	a := newAllocator(t, int(3*p/4096))
	// [p-0x1000, 2p): trimming the prefix leaves exactly one aligned page.
	seed(t, a, [2]uint64{p - 0x1000, p + 0x1000})

	addr, err := a.AllocFrame(p, midPage(), frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(p), addr)
	assert.Equal(t, []span{free(p-0x1000, 0x1000), {p, p, frame.Kernel}}, spans(a.Frames()))
	assertInvariants(t, a)
}

func TestAllocFrame_LargePageCoalescesFirst(t *testing.T) {
	p := midPage().Bytes()
	a := newAllocator(t, int(p/4096))
	// Two halves of one large page, seeded separately.
	seed(t, a, [2]uint64{0x0, p / 2}, [2]uint64{p / 2, p / 2})

	addr, err := a.AllocFrame(p, midPage(), frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0), addr)
	assert.Empty(t, a.FreeFrames())
	assertInvariants(t, a)
}

func TestAllocFrame_RequestErrors(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x10000})

	_, err := a.AllocFrame(0, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrBadSize)
	_, err = a.AllocFrame(^uint64(0), frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrBadSize)
	_, err = a.AllocFrame(0x1000, frame.PageSize(3000), frame.Kernel)
	require.ErrorIs(t, err, ErrBadPageSize)
	_, err = a.AllocFrame(0x1000, frame.Small, frame.Nobody)
	require.ErrorIs(t, err, ErrBadOwner)
	assert.Equal(t, uint64(4), a.Stats().Failures)
	assertInvariants(t, a)
}

func TestAllocFrame_ZeroFill(t *testing.T) {
	z := &recordingZeroer{}
	a := newAllocator(t, 16, WithZeroer(z))
	seed(t, a, [2]uint64{0x0, 0x10000})

	_, err := a.AllocFrame(0x1800, frame.Small, frame.Kernel)
	require.NoError(t, err)
	_, err = a.AllocFrameFixed(0x8000, 0x1000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, []span{{Base: 0x0, Size: 0x2000}, {Base: 0x8000, Size: 0x1000}}, z.calls)
}

func TestAllocFrame_ZeroFillFailureFreesFrame(t *testing.T) {
	boom := errors.New("boom")
	a := newAllocator(t, 16, WithZeroer(ZeroFunc(func(frame.PhysAddr, uint64) error { return boom })))
	seed(t, a, [2]uint64{0x0, 0x10000})

	_, err := a.AllocFrame(0x2000, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrZeroFill)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0x10000), a.FreeMemCount())
	assert.Empty(t, a.AllocatedFrames())
	assertInvariants(t, a)
}

// =============================================================================
// AllocFrameFixed
// =============================================================================

func TestAllocFrameFixed_AtFrameBase(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x1000}, [2]uint64{0x4000, 0x4000})

	addr, err := a.AllocFrameFixed(0x0, 0x1000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0), addr)

	addr, err = a.AllocFrameFixed(0x4000, 0x2000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x4000), addr)
	assert.Equal(t, []span{
		{0x0, 0x1000, frame.Kernel},
		{0x4000, 0x2000, frame.Kernel},
		free(0x6000, 0x2000),
	}, spans(a.Frames()))
	assertInvariants(t, a)
}

func TestAllocFrameFixed_TailOfFrame(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x4000})

	_, err := a.AllocFrameFixed(0x2000, 0x2000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, []span{free(0x0, 0x2000), {0x2000, 0x2000, frame.Kernel}}, spans(a.Frames()))
	assertInvariants(t, a)
}

func TestAllocFrameFixed_SpansSeededBoundary(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x2000}, [2]uint64{0x2000, 0x2000})

	addr, err := a.AllocFrameFixed(0x1000, 0x2000, frame.Small, frame.Kernel)
	require.NoError(t, err)
	assert.Equal(t, frame.PhysAddr(0x1000), addr)
	assert.Equal(t, []span{
		free(0x0, 0x1000),
		{0x1000, 0x2000, frame.Kernel},
		free(0x3000, 0x1000),
	}, spans(a.Frames()))
	assertInvariants(t, a)
}

func TestAllocFrameFixed_Errors(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x4000})
	_, err := a.AllocFrameFixed(0x0, 0x1000, frame.Small, frame.Kernel)
	require.NoError(t, err)

	_, err = a.AllocFrameFixed(0x1000, 0x1000, midPage(), frame.Kernel)
	require.ErrorIs(t, err, ErrMisaligned)
	_, err = a.AllocFrameFixed(0x8000, 0x1000, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrNoFit, "outside every free frame")
	_, err = a.AllocFrameFixed(0x0, 0x1000, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrNoFit, "already allocated")
	_, err = a.AllocFrameFixed(0x3000, 0x2000, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrNoFit, "runs past the end of the free frame")
	_, err = a.AllocFrameFixed(0x1000, 0, frame.Small, frame.Kernel)
	require.ErrorIs(t, err, ErrBadSize)

	assert.Equal(t, []span{{0x0, 0x1000, frame.Kernel}, free(0x1000, 0x3000)}, spans(a.Frames()))
	assertInvariants(t, a)
}

// =============================================================================
// DeallocFrame
// =============================================================================

func TestDeallocFrame_OwnerGate(t *testing.T) {
	a := newAllocator(t, 16)
	seed(t, a, [2]uint64{0x0, 0x10000})
	usr, err := frame.UserOwner(frame.MinUserID + 1)
	require.NoError(t, err)

	addr, err := a.AllocFrame(0x4000, frame.Small, usr)
	require.NoError(t, err)
	before := spans(a.AllocatedFrames())

	err = a.DeallocFrame(addr, frame.Kernel)
	require.ErrorIs(t, err, ErrOwnerMismatch)
	assert.Equal(t, before, spans(a.AllocatedFrames()))
	assert.False(t, a.IsMemoryFrameFree(addr))

	// Any page inside the frame identifies it.
	require.NoError(t, a.DeallocFrame(addr+0x3000, usr))
	assert.Empty(t, a.AllocatedFrames())
	assert.True(t, a.IsMemoryFrameFree(addr))
	assertInvariants(t, a)

	err = a.DeallocFrame(addr, usr)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeallocFrame_CoalesceThreshold(t *testing.T) {
	a := newAllocator(t, 16, WithCoalesceThreshold(2))
	seed(t, a, [2]uint64{0x0, 0x10000})

	var addrs []frame.PhysAddr
	for i := 0; i < 4; i++ {
		addr, err := a.AllocFrame(0x1000, frame.Small, frame.Kernel)
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	require.Equal(t, []frame.PhysAddr{0x0, 0x1000, 0x2000, 0x3000}, addrs)

	wantFree := []int{2, 3, 4, 1}
	for i, addr := range addrs {
		require.NoError(t, a.DeallocFrame(addr, frame.Kernel))
		assert.Equal(t, wantFree[i], a.FreeFrameCount(), "after dealloc %d", i)
		assertInvariants(t, a)
	}
	assert.Equal(t, uint64(1), a.Stats().Coalesces)
	assert.Equal(t, uint64(4), a.Stats().Deallocations)
}

// =============================================================================
// Properties over random workloads
// =============================================================================

func TestAllocFree_RestoresFreeSpace(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := newAllocator(t, 512, WithCoalesceThreshold(8))
	seed(t, a, [2]uint64{0x0, 0x100000}, [2]uint64{0x180000, 0x80000})
	before := spans(a.FreeFrames())
	freeBefore := a.FreeMemCount()

	owners := []frame.Owner{frame.Kernel, frame.Memory, mustSystem(t, 9)}
	live := map[frame.PhysAddr]frame.Owner{}

	for step := 0; step < 2000; step++ {
		switch op := rng.IntN(10); {
		case op < 5:
			size := uint64(rng.IntN(8)+1) * 0x1000
			owner := owners[rng.IntN(len(owners))]
			addr, err := a.AllocFrame(size, frame.Small, owner)
			if err != nil {
				require.ErrorIs(t, err, ErrNoFit)
				break
			}
			require.True(t, addr.IsAligned(0x1000))
			live[addr] = owner
		case op < 7:
			addr := frame.PhysAddr(rng.IntN(0x200) * 0x1000)
			owner := owners[rng.IntN(len(owners))]
			got, err := a.AllocFrameFixed(addr, 0x1000, frame.Small, owner)
			if err != nil {
				require.ErrorIs(t, err, ErrNoFit)
				break
			}
			require.Equal(t, addr, got)
			live[addr] = owner
		default:
			for addr, owner := range live {
				require.NoError(t, a.DeallocFrame(addr, owner))
				delete(live, addr)
				break
			}
		}
		if step%25 == 0 {
			assertInvariants(t, a)
		}
		require.Equal(t, a.TrackedMemCount(), a.FreeMemCount()+a.AllocMemCount())
	}

	for addr, owner := range live {
		require.NoError(t, a.DeallocFrame(addr, owner))
	}
	a.CoalesceFreeFrames()
	assertInvariants(t, a)
	assert.Equal(t, freeBefore, a.FreeMemCount())
	if diff := cmp.Diff(before, spans(a.FreeFrames())); diff != "" {
		t.Fatalf("free frames differ after full release (-before +after):\n%s", diff)
	}
}

func FuzzTreeAllocator(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	f.Add([]byte{0x10, 0x22, 0x81, 0x43, 0xf0, 0x05})
	f.Fuzz(func(t *testing.T, ops []byte) {
		a := newAllocator(t, 128, WithCoalesceThreshold(3))
		seed(t, a, [2]uint64{0x0, 0x40000}, [2]uint64{0x50000, 0x30000})
		var live []frame.PhysAddr

		for _, op := range ops {
			switch op >> 6 {
			case 0, 1:
				size := uint64(op&0x0f+1) * 0x1000
				if addr, err := a.AllocFrame(size, frame.Small, frame.Kernel); err == nil {
					live = append(live, addr)
				}
			case 2:
				addr := frame.PhysAddr(uint64(op&0x3f) * 0x2000)
				if _, err := a.AllocFrameFixed(addr, 0x1000, frame.Small, frame.Kernel); err == nil {
					live = append(live, addr)
				}
			case 3:
				if len(live) > 0 {
					i := int(op&0x3f) % len(live)
					require.NoError(t, a.DeallocFrame(live[i], frame.Kernel))
					live = append(live[:i], live[i+1:]...)
				}
			}
			assertInvariants(t, a)
		}
	})
}

func BenchmarkAllocDealloc(b *testing.B) {
	a := newAllocator(b, 1<<14)
	seed(b, a, [2]uint64{0x0, 1 << 26})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := a.AllocFrame(uint64(i%16+1)*0x1000, frame.Small, frame.Kernel)
		if err != nil {
			b.Fatal(err)
		}
		if err := a.DeallocFrame(addr, frame.Kernel); err != nil {
			b.Fatal(err)
		}
	}
}
