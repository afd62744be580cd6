package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/framekit/frame"
)

// span is a comparable view of a frame.
type span struct {
	Base  uint64
	Size  uint64
	Owner frame.Owner
}

func spans(ds []Descriptor) []span {
	out := make([]span, 0, len(ds))
	for _, d := range ds {
		out = append(out, span{Base: uint64(d.Base), Size: d.Size, Owner: d.Owner})
	}
	return out
}

func free(base, size uint64) span { return span{Base: base, Size: size, Owner: frame.Nobody} }

// newAllocator returns an allocator sized for pages default-size pages.
func newAllocator(t testing.TB, pages int, opts ...Option) *TreeAllocator {
	t.Helper()
	a, err := New(pages, opts...)
	require.NoError(t, err)
	return a
}

// seed adds free frames and checks the allocator afterwards.
func seed(t testing.TB, a *TreeAllocator, ranges ...[2]uint64) {
	t.Helper()
	for _, r := range ranges {
		_, err := a.AddMemFrame(frame.PhysAddr(r[0]), r[1], true, 0, frame.Nobody)
		require.NoError(t, err)
	}
	assertInvariants(t, a)
}

// assertInvariants fails the test if the allocator state is inconsistent.
func assertInvariants(t testing.TB, a *TreeAllocator) {
	t.Helper()
	require.NoError(t, a.Verify())
}

// recordingZeroer records zero-fill requests and optionally fails them.
type recordingZeroer struct {
	calls []span
	err   error
}

func (z *recordingZeroer) Zero(base frame.PhysAddr, size uint64) error {
	z.calls = append(z.calls, span{Base: uint64(base), Size: size})
	return z.err
}

func mustSystem(t testing.TB, id uint64) frame.Owner {
	t.Helper()
	o, err := frame.SystemOwner(id)
	require.NoError(t, err)
	return o
}

// midPage returns the second page-size class of this architecture.
func midPage() frame.PageSize { return frame.PageSizes()[1] }
