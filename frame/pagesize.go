package frame

import "fmt"

// PageSize is a page granularity. Its value is the page size in bytes.
type PageSize uint64

// DefaultPageSize is the smallest page granularity and the unit of every frame.
const DefaultPageSize = Small

// Bytes returns the page size in bytes.
func (p PageSize) Bytes() uint64 { return uint64(p) }

// Valid reports whether p is one of the page-size classes of this architecture.
func (p PageSize) Valid() bool {
	for _, s := range PageSizes() {
		if s == p {
			return true
		}
	}
	return false
}

func (p PageSize) String() string {
	if name, ok := pageSizeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PageSize(%d)", uint64(p))
}

// ParsePageSize accepts a class name ("small") or a byte count ("4096").
func ParsePageSize(s string) (PageSize, error) {
	for p, name := range pageSizeNames {
		if name == s {
			return p, nil
		}
	}
	var n uint64
	if _, err := fmt.Sscan(s, &n); err == nil && PageSize(n).Valid() {
		return PageSize(n), nil
	}
	return 0, fmt.Errorf("frame: unknown page size %q", s)
}
