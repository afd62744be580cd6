//go:build arm64

package frame

const (
	Small  PageSize = 4 << 10
	Medium PageSize = 16 << 10
	Large  PageSize = 64 << 10
)

var pageSizeNames = map[PageSize]string{
	Small:  "small",
	Medium: "medium",
	Large:  "large",
}

// PageSizes returns the page-size classes of this architecture, smallest first.
func PageSizes() []PageSize { return []PageSize{Small, Medium, Large} }
