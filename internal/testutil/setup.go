// Package testutil holds fixtures shared by tests that boot a memory manager.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pmm"
	"github.com/joshuapare/framekit/internal/logger"
)

// PC map geometry.
const (
	PCBoundary = frame.PhysAddr(0x1010000)
	PCPages    = 0x1010
	PCUsable   = uint64(0x9F000 + 0xF00000)
)

// PCMap is a small PC-like layout, deliberately unsorted: low memory, the
// legacy hole, 15MiB of extended memory and an ACPI table area on top.
func PCMap() []frame.MemoryMapEntry {
	return []frame.MemoryMapEntry{
		{Base: 0x100000, Pages: 0xF00, Type: frame.RegionUsable},
		{Base: 0x1000000, Pages: 0x10, Type: frame.RegionACPIReclaim},
		{Base: 0, Pages: 0x9F, Type: frame.RegionUsable},
		{Base: 0x9F000, Pages: 0x61, Type: frame.RegionReserved},
	}
}

// Quiet discards bootstrap and allocator logs.
func Quiet() pmm.Option { return pmm.WithLogger(logger.Discard()) }

// Bootstrap boots a manager from entries, failing the test on error.
//
// Example:
//
//	m := testutil.Bootstrap(t, testutil.PCMap(), pmm.WithoutBookkeeping())
func Bootstrap(t testing.TB, entries []frame.MemoryMapEntry, opts ...pmm.Option) *pmm.Manager {
	t.Helper()
	m, err := pmm.Bootstrap(entries, append([]pmm.Option{Quiet()}, opts...)...)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return m
}

// WriteFile writes content to name in a temporary directory and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
