// Package pageinfo keeps one status record per default-size physical page.
// The table mirrors the allocator's frame partitions for diagnostics and
// queries; it never drives allocation decisions.
package pageinfo

import (
	"fmt"

	"github.com/joshuapare/framekit/frame"
)

// Status is the state of a single page.
type Status uint8

const (
	// Missing pages were never described by the memory map.
	Missing Status = iota
	Free
	Reserved
	Alloc
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Free:
		return "free"
	case Reserved:
		return "reserved"
	case Alloc:
		return "alloc"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Info describes one page.
type Info struct {
	Status Status
	Holder frame.Owner
}

// Table is the shadow table. It is not safe for concurrent use.
type Table struct {
	pages    []Info
	pageSize uint64
	counts   [Alloc + 1]int
}

// New returns a table of totalPages pages, all Missing.
func New(totalPages int) *Table {
	t := &Table{
		pages:    make([]Info, totalPages),
		pageSize: frame.DefaultPageSize.Bytes(),
	}
	t.counts[Missing] = totalPages
	return t
}

// Len returns the number of pages tracked.
func (t *Table) Len() int { return len(t.pages) }

// RecordSize is the in-memory footprint of one page record.
const RecordSize = 16

// SizeBytes returns the bookkeeping footprint of the table.
func (t *Table) SizeBytes() uint64 { return uint64(len(t.pages)) * RecordSize }

// Update sets every page overlapping [base, base+size) to status and holder.
// Pages past the end of the table are ignored. It returns the number of pages
// written.
func (t *Table) Update(base frame.PhysAddr, size uint64, status Status, holder frame.Owner) int {
	if size == 0 {
		return 0
	}
	first := uint64(base) / t.pageSize
	last := (uint64(base) + size - 1) / t.pageSize
	if uint64(base)+size < uint64(base) {
		last = ^uint64(0) / t.pageSize
	}
	n := 0
	for i := first; i <= last && i < uint64(len(t.pages)); i++ {
		p := &t.pages[i]
		t.counts[p.Status]--
		p.Status = status
		p.Holder = holder
		t.counts[status]++
		n++
	}
	return n
}

// At returns the record of page idx.
func (t *Table) At(idx uint64) (Info, bool) {
	if idx >= uint64(len(t.pages)) {
		return Info{}, false
	}
	return t.pages[idx], true
}

// Lookup returns the record of the page containing addr.
func (t *Table) Lookup(addr frame.PhysAddr) (Info, bool) {
	return t.At(uint64(addr) / t.pageSize)
}

// Count returns the number of pages with the given status.
func (t *Table) Count(s Status) int {
	if s > Alloc {
		return 0
	}
	return t.counts[s]
}

// Runs calls fn for each maximal run of pages sharing status and holder, in
// address order, until fn returns false.
func (t *Table) Runs(fn func(base frame.PhysAddr, pages int, info Info) bool) {
	start := 0
	for i := 1; i <= len(t.pages); i++ {
		if i < len(t.pages) && t.pages[i] == t.pages[start] {
			continue
		}
		if !fn(frame.PhysAddr(uint64(start)*t.pageSize), i-start, t.pages[start]) {
			return
		}
		start = i
	}
}
