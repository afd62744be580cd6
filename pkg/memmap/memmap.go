package memmap

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	"sigs.k8s.io/yaml"

	"github.com/joshuapare/framekit/frame"
)

var (
	// ErrRegion indicates a region with a missing or invalid field.
	ErrRegion = errors.New("memmap: invalid region")

	// ErrOverlap indicates two regions covering the same address.
	ErrOverlap = errors.New("memmap: regions overlap")

	// ErrPageSize indicates a pageSize other than the default page size.
	ErrPageSize = errors.New("memmap: unsupported page size")
)

//go:embed qemu.yaml
var qemuMap []byte

// Document is the serialized form of a memory map.
type Document struct {
	PageSize uint64   `json:"pageSize,omitempty"`
	Regions  []Region `json:"regions"`
}

// Region is one serialized memory map entry.
type Region struct {
	Base  Addr   `json:"base"`
	Pages uint64 `json:"pages,omitempty"`
	Size  Size   `json:"size,omitempty"`
	Type  string `json:"type"`
}

// Addr is a physical address that decodes from a number or an integer string.
type Addr uint64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Addr) UnmarshalJSON(b []byte) error {
	v, err := parseUint(b, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 0, 64)
	})
	if err != nil {
		return fmt.Errorf("address %s: %w", b, err)
	}
	*a = Addr(v)
	return nil
}

// MarshalJSON writes the address as a hex string.
func (a Addr) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%#x", uint64(a)))
}

// Size is a byte count that decodes from a number or a string with a binary
// unit suffix.
type Size uint64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(b []byte) error {
	v, err := parseUint(b, func(str string) (uint64, error) {
		n, err := units.RAMInBytes(str)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("negative size %d", n)
		}
		return uint64(n), nil
	})
	if err != nil {
		return fmt.Errorf("size %s: %w", b, err)
	}
	*s = Size(v)
	return nil
}

// parseUint decodes a JSON number directly and hands a JSON string to parse.
func parseUint(b []byte, parse func(string) (uint64, error)) (uint64, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		return parse(strings.TrimSpace(s))
	}
	return strconv.ParseUint(string(b), 10, 64)
}

// Parse decodes a YAML or JSON memory map.
func Parse(data []byte) ([]frame.MemoryMapEntry, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("memmap: %w", err)
	}
	return doc.Entries()
}

// Load reads and parses the memory map at path.
func Load(path string) ([]frame.MemoryMapEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memmap: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Default returns the built-in 128MiB QEMU map.
func Default() []frame.MemoryMapEntry {
	entries, err := Parse(qemuMap)
	if err != nil {
		panic(err)
	}
	return entries
}

// Entries validates the document and converts it to memory map entries
// sorted by base address.
func (d Document) Entries() ([]frame.MemoryMapEntry, error) {
	var result *multierror.Error
	page := frame.DefaultPageSize.Bytes()
	if d.PageSize != 0 && d.PageSize != page {
		result = multierror.Append(result, fmt.Errorf("%w: %d, want %d", ErrPageSize, d.PageSize, page))
	}

	entries := make([]frame.MemoryMapEntry, 0, len(d.Regions))
	for i, r := range d.Regions {
		e, err := r.entry(page)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("region %d: %w", i, err))
			continue
		}
		entries = append(entries, e)
	}

	slices.SortStableFunc(entries, func(x, y frame.MemoryMapEntry) int {
		switch {
		case x.Base < y.Base:
			return -1
		case x.Base > y.Base:
			return 1
		}
		return 0
	})
	for i := 1; i < len(entries); i++ {
		if entries[i].Base < entries[i-1].End() {
			result = multierror.Append(result, fmt.Errorf("%w: %s and %s", ErrOverlap, entries[i-1], entries[i]))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r Region) entry(page uint64) (frame.MemoryMapEntry, error) {
	t, err := frame.ParseRegionType(r.Type)
	if err != nil {
		return frame.MemoryMapEntry{}, fmt.Errorf("%w: %w", ErrRegion, err)
	}
	e := frame.MemoryMapEntry{Base: frame.PhysAddr(r.Base), Pages: r.Pages, Type: t}
	switch {
	case r.Pages != 0 && r.Size != 0:
		return e, fmt.Errorf("%w: both pages and size at %s", ErrRegion, e.Base)
	case r.Size != 0:
		if uint64(r.Size)%page != 0 {
			e.Pages = (uint64(r.Size) + page - 1) / page
			if e.Type.Usable() {
				return e, fmt.Errorf("%w: usable size %#x is not a multiple of %#x", ErrRegion, uint64(r.Size), page)
			}
		} else {
			e.Pages = uint64(r.Size) / page
		}
	case r.Pages == 0:
		return e, fmt.Errorf("%w: no length at %s", ErrRegion, e.Base)
	}
	if _, _, err := e.Range(); err != nil {
		return e, fmt.Errorf("%w: %w", ErrRegion, err)
	}
	return e, nil
}

// FromEntries builds a document for entries.
func FromEntries(entries []frame.MemoryMapEntry) Document {
	d := Document{PageSize: frame.DefaultPageSize.Bytes(), Regions: make([]Region, 0, len(entries))}
	for _, e := range entries {
		d.Regions = append(d.Regions, Region{Base: Addr(e.Base), Pages: e.Pages, Type: e.Type.String()})
	}
	return d
}

// Marshal encodes entries as YAML.
func Marshal(entries []frame.MemoryMapEntry) ([]byte, error) {
	return yaml.Marshal(FromEntries(entries))
}
