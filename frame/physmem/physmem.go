// Package physmem provides a byte-addressable stand-in for a window of
// physical memory. The allocator zero-fills frames through it, and the
// simulator reads and writes frame contents with it.
package physmem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/internal/buf"
)

var (
	// ErrOutOfRange indicates an access outside the mapped window.
	ErrOutOfRange = errors.New("physmem: access out of range")

	// ErrClosed indicates use of memory after Close.
	ErrClosed = errors.New("physmem: memory closed")
)

// Memory backs the physical range [Base, Base+Size).
type Memory struct {
	base   frame.PhysAddr
	data   []byte
	unmap  func() error
	zeroed uint64
}

// Map returns memory backing [base, base+size). On unix the window is an
// anonymous private mapping, so untouched pages cost nothing.
func Map(base frame.PhysAddr, size uint64) (*Memory, error) {
	if _, err := buf.RangeEnd(uint64(base), size); err != nil {
		return nil, fmt.Errorf("physmem: %w", err)
	}
	if size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("physmem: window too large to map (%d bytes)", size)
	}
	data, unmap, err := mapAnon(int(size))
	if err != nil {
		return nil, fmt.Errorf("physmem: map %d bytes: %w", size, err)
	}
	return &Memory{base: base, data: data, unmap: unmap}, nil
}

// Base returns the first physical address of the window.
func (m *Memory) Base() frame.PhysAddr { return m.base }

// Size returns the window length in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.data)) }

// ZeroedBytes returns the total number of bytes cleared by Zero.
func (m *Memory) ZeroedBytes() uint64 { return m.zeroed }

// slice returns the bytes backing [addr, addr+n).
func (m *Memory) slice(addr frame.PhysAddr, n uint64) ([]byte, error) {
	if m.data == nil && m.unmap == nil {
		return nil, ErrClosed
	}
	if addr < m.base {
		return nil, fmt.Errorf("%w: %s below base %s", ErrOutOfRange, addr, m.base)
	}
	b, ok := buf.Slice(m.data, uint64(addr-m.base), n)
	if !ok {
		return nil, fmt.Errorf("%w: [%s, +%#x) past %s", ErrOutOfRange, addr, n, m.base.Add(m.Size()))
	}
	return b, nil
}

// Zero clears [addr, addr+size). It satisfies alloc.Zeroer.
func (m *Memory) Zero(addr frame.PhysAddr, size uint64) error {
	b, err := m.slice(addr, size)
	if err != nil {
		return err
	}
	clear(b)
	m.zeroed += size
	return nil
}

// ReadAt copies len(p) bytes starting at physical address addr into p.
func (m *Memory) ReadAt(p []byte, addr frame.PhysAddr) (int, error) {
	b, err := m.slice(addr, uint64(len(p)))
	if err != nil {
		return 0, err
	}
	return copy(p, b), nil
}

// WriteAt copies p to physical address addr.
func (m *Memory) WriteAt(p []byte, addr frame.PhysAddr) (int, error) {
	b, err := m.slice(addr, uint64(len(p)))
	if err != nil {
		return 0, err
	}
	return copy(b, p), nil
}

// Close releases the window. Further access fails with ErrClosed.
func (m *Memory) Close() error {
	if m.unmap == nil {
		return nil
	}
	err := m.unmap()
	m.data, m.unmap = nil, nil
	return err
}
