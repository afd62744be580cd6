package pmm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/alloc"
	"github.com/joshuapare/framekit/frame/pageinfo"
	"github.com/joshuapare/framekit/internal/logger"
)

var (
	// ErrEmptyMap indicates a memory map without usable memory.
	ErrEmptyMap = errors.New("pmm: memory map has no usable memory")

	// ErrOverlap indicates two memory map entries covering the same address.
	ErrOverlap = errors.New("pmm: memory map entries overlap")

	// ErrBookkeeping indicates the allocator could not reserve its own memory.
	ErrBookkeeping = errors.New("pmm: cannot reserve bookkeeping memory")
)

var pageBytes = frame.DefaultPageSize.Bytes()

// Manager is the single owner of the system's TreeAllocator. All methods are
// safe for concurrent use.
type Manager struct {
	mu sync.Mutex
	a  *alloc.TreeAllocator

	boundary    frame.PhysAddr
	bookkeeping alloc.Descriptor
	genesis     *GenesisHeader
	log         *slog.Logger
}

// Bootstrap builds the manager from the platform memory map.
func Bootstrap(entries []frame.MemoryMapEntry, opts ...Option) (*Manager, error) {
	cfg := config{bookkeeping: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log
	if log == nil {
		log = logger.For("pmm")
	}

	regions, err := normalize(entries)
	if err != nil {
		return nil, err
	}
	usable := false
	var boundary frame.PhysAddr
	for _, e := range regions {
		usable = usable || e.Type.Usable()
		boundary = max(boundary, e.End())
	}
	if !usable {
		return nil, ErrEmptyMap
	}
	totalPages := boundary.AlignUp(pageBytes).PageIndex()
	if totalPages >= uint64(^uint32(0)) {
		return nil, fmt.Errorf("pmm: %d pages exceed the descriptor index space", totalPages)
	}

	allocOpts := []alloc.Option{
		alloc.WithTotalMemory(uint64(boundary)),
		alloc.WithTotalPages(int(totalPages)),
	}
	if cfg.log != nil {
		allocOpts = append(allocOpts, alloc.WithLogger(cfg.log))
	}
	if cfg.mem != nil {
		allocOpts = append(allocOpts, alloc.WithZeroer(cfg.mem))
	}
	a, err := alloc.New(int(totalPages), append(allocOpts, cfg.allocOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("pmm: %w", err)
	}

	m := &Manager{a: a, boundary: boundary, log: log}
	if err := m.seed(regions); err != nil {
		return nil, err
	}
	if cfg.genesis != nil {
		if err := m.claimGenesis(*cfg.genesis, cfg.mem, totalPages); err != nil {
			return nil, err
		}
	}
	if cfg.bookkeeping {
		if err := m.reserveBookkeeping(int(totalPages)); err != nil {
			return nil, err
		}
	}
	m.log.Info("physical memory online",
		"boundary", boundary,
		"pages", totalPages,
		"free", a.FreeMemCount(),
		"frames", a.FrameCount())
	return m, nil
}

// normalize sorts the map, drops empty entries and rejects overlaps.
func normalize(entries []frame.MemoryMapEntry) ([]frame.MemoryMapEntry, error) {
	out := make([]frame.MemoryMapEntry, 0, len(entries))
	for _, e := range entries {
		if e.Pages == 0 {
			continue
		}
		if _, _, err := e.Range(); err != nil {
			return nil, fmt.Errorf("pmm: %w", err)
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y frame.MemoryMapEntry) int {
		switch {
		case x.Base < y.Base:
			return -1
		case x.Base > y.Base:
			return 1
		}
		return 0
	})
	for i := 1; i < len(out); i++ {
		if out[i].Base < out[i-1].End() {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlap, out[i-1], out[i])
		}
	}
	return out, nil
}

// seed adds one frame per region. Usable regions shrink to whole pages;
// other regions grow to whole pages without crossing the previous frame.
func (m *Manager) seed(regions []frame.MemoryMapEntry) error {
	var cursor frame.PhysAddr
	for _, e := range regions {
		base, end := e.Base, e.End()
		if e.Type.Usable() {
			base, end = base.AlignUp(pageBytes), end.AlignDown(pageBytes)
		} else {
			base, end = base.AlignDown(pageBytes), end.AlignUp(pageBytes)
		}
		base = max(base, cursor)
		if end <= base {
			m.log.Debug("skip region", "region", e)
			continue
		}
		_, err := m.a.AddMemFrame(base, uint64(end-base), e.Type.Usable(), uint32(e.Type), e.Type.Owner())
		if err != nil {
			return fmt.Errorf("pmm: add region %s: %w", e, err)
		}
		cursor = end
	}
	return nil
}

// claimGenesis allocates the genesis page to the kernel. A recovered header
// is read before the claim zero-fills the page and written back after it.
func (m *Manager) claimGenesis(g Genesis, mem Memory, totalPages uint64) error {
	h := GenesisHeader{Magic: GenesisMagic, ID: g.ID, TotalPages: totalPages, Boundary: m.boundary}
	if g.Recover && mem != nil {
		got, err := ReadGenesis(mem, g.Base)
		if err != nil {
			return err
		}
		if got.ID != g.ID {
			return fmt.Errorf("%w: found %#x, want %#x", ErrGenesisMismatch, got.ID, g.ID)
		}
		h = got
	}
	if _, err := m.a.AllocFrameFixed(g.Base, GenesisHeaderSize, frame.DefaultPageSize, frame.Kernel); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGenesisClaim, g.Base, err)
	}
	if mem != nil {
		if err := WriteGenesis(mem, g.Base, h); err != nil {
			return err
		}
		back, err := ReadGenesis(mem, g.Base)
		if err != nil {
			return err
		}
		if back != h {
			return fmt.Errorf("%w: header did not survive a write at %s", ErrGenesisMismatch, g.Base)
		}
	}
	m.genesis = &h
	m.log.Info("genesis claimed", "base", g.Base, "id", g.ID)
	return nil
}

func (m *Manager) reserveBookkeeping(totalPages int) error {
	size := frame.AlignUp(alloc.FootprintBytes(m.a.Capacity(), totalPages), pageBytes)
	base, err := m.a.AllocFrame(size, frame.DefaultPageSize, frame.Memory)
	if err != nil {
		return fmt.Errorf("%w: %#x bytes: %w", ErrBookkeeping, size, err)
	}
	d, _ := m.a.FrameContaining(base)
	m.bookkeeping = d
	m.log.Debug("bookkeeping reserved", "base", base, "size", size)
	return nil
}

// Boundary returns the first address past the highest mapped region.
func (m *Manager) Boundary() frame.PhysAddr { return m.boundary }

// Bookkeeping returns the frame holding the allocator's own structures. It
// is the zero Descriptor when bookkeeping was disabled.
func (m *Manager) Bookkeeping() alloc.Descriptor { return m.bookkeeping }

// Genesis returns the genesis header claimed at boot, if any.
func (m *Manager) Genesis() (GenesisHeader, bool) {
	if m.genesis == nil {
		return GenesisHeader{}, false
	}
	return *m.genesis, true
}

// With runs fn with exclusive access to the allocator. fn must not retain it.
func (m *Manager) With(fn func(*alloc.TreeAllocator) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.a)
}

// AllocFrame allocates size bytes aligned to ps for owner.
func (m *Manager) AllocFrame(size uint64, ps frame.PageSize, owner frame.Owner) (frame.PhysAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.AllocFrame(size, ps, owner)
}

// AllocFrameFixed allocates size bytes at addr for owner.
func (m *Manager) AllocFrameFixed(addr frame.PhysAddr, size uint64, ps frame.PageSize, owner frame.Owner) (frame.PhysAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.AllocFrameFixed(addr, size, ps, owner)
}

// DeallocFrame frees the frame containing addr held by owner.
func (m *Manager) DeallocFrame(addr frame.PhysAddr, owner frame.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.DeallocFrame(addr, owner)
}

// Coalesce merges adjacent free frames and returns the number of merges.
func (m *Manager) Coalesce() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.CoalesceFreeFrames()
}

// FreeMemCount returns the number of free bytes.
func (m *Manager) FreeMemCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.FreeMemCount()
}

// FreePageCount returns the number of free default-size pages.
func (m *Manager) FreePageCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.FreePageCount()
}

// TotalMemCount returns the physical memory boundary in bytes.
func (m *Manager) TotalMemCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.TotalMemCount()
}

// TotalPageCount returns the number of default-size pages below the boundary.
func (m *Manager) TotalPageCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.TotalPageCount()
}

// IsMemoryFrameFree reports whether the page containing addr is free.
func (m *Manager) IsMemoryFrameFree(addr frame.PhysAddr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.IsMemoryFrameFree(addr)
}

// IsFrameIndexFree reports whether page number idx is free.
func (m *Manager) IsFrameIndexFree(idx uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.IsFrameIndexFree(idx)
}

// PageInfo returns the page record for addr.
func (m *Manager) PageInfo(addr frame.PhysAddr) (pageinfo.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.PageInfo(addr)
}

// Stats returns the allocator statistics.
func (m *Manager) Stats() alloc.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.Stats()
}

// Frames returns every frame in address order.
func (m *Manager) Frames() []alloc.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.Frames()
}

// Verify checks the allocator invariants.
func (m *Manager) Verify() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.Verify()
}

// DumpTrees writes the allocator trees to w.
func (m *Manager) DumpTrees(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.a.DumpTrees(w)
}
