package pmm

import (
	"log/slog"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/alloc"
)

// Memory is the physical memory window the manager zero-fills and stores the
// genesis header in. *physmem.Memory satisfies it.
type Memory interface {
	Zero(base frame.PhysAddr, size uint64) error
	ReadAt(p []byte, addr frame.PhysAddr) (int, error)
	WriteAt(p []byte, addr frame.PhysAddr) (int, error)
}

type config struct {
	allocOpts   []alloc.Option
	genesis     *Genesis
	mem         Memory
	bookkeeping bool
	log         *slog.Logger
}

// Option configures Bootstrap.
type Option func(*config)

// WithAllocatorOptions passes options through to alloc.New.
func WithAllocatorOptions(opts ...alloc.Option) Option {
	return func(c *config) { c.allocOpts = append(c.allocOpts, opts...) }
}

// WithGenesis claims the genesis block described by g during bootstrap.
func WithGenesis(g Genesis) Option {
	return func(c *config) { c.genesis = &g }
}

// WithMemory backs the manager with m. Allocations are zero-filled through it
// and the genesis header is written to it.
func WithMemory(m Memory) Option {
	return func(c *config) { c.mem = m }
}

// WithoutBookkeeping skips reserving memory for the allocator's own
// structures. Hosted callers whose structures live on the Go heap use it.
func WithoutBookkeeping() Option {
	return func(c *config) { c.bookkeeping = false }
}

// WithLogger sets the logger for bootstrap and the allocator.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}
