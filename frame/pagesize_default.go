//go:build !arm64

package frame

const (
	Small  PageSize = 4 << 10
	Medium PageSize = 2 << 20
	Huge   PageSize = 1 << 30
)

var pageSizeNames = map[PageSize]string{
	Small:  "small",
	Medium: "medium",
	Huge:   "huge",
}

// PageSizes returns the page-size classes of this architecture, smallest first.
func PageSizes() []PageSize { return []PageSize{Small, Medium, Huge} }
