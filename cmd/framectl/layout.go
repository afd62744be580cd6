package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/framekit/frame/alloc"
	"github.com/joshuapare/framekit/frame/pmm"
)

func init() {
	rootCmd.AddCommand(newLayoutCmd())
}

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print every frame in address order",
		Long: `The layout command boots the memory manager and lists every tracked
frame with its range, size, partition and owner.

Example:
  framectl layout
  framectl layout --map qemu.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := boot()
			if err != nil {
				return err
			}
			return printLayout(m)
		},
	}
	return cmd
}

// FrameJSON is the JSON form of one frame.
type FrameJSON struct {
	Index     int    `json:"index"`
	Base      string `json:"base"`
	End       string `json:"end"`
	Size      uint64 `json:"size"`
	Partition string `json:"partition"`
	Owner     string `json:"owner"`
}

func partition(d alloc.Descriptor) string {
	if d.Free() {
		return "free"
	}
	return "allocated"
}

func framesJSON(frames []alloc.Descriptor) []FrameJSON {
	out := make([]FrameJSON, 0, len(frames))
	for _, d := range frames {
		out = append(out, FrameJSON{
			Index:     d.Index,
			Base:      d.Base.String(),
			End:       d.End().String(),
			Size:      d.Size,
			Partition: partition(d),
			Owner:     d.Owner.String(),
		})
	}
	return out
}

func printLayout(m *pmm.Manager) error {
	frames := m.Frames()

	if jsonOut {
		return printJSON(framesJSON(frames))
	}

	printHeading(fmt.Sprintf("Frames (%d)", len(frames)))
	printInfo("%s\n", strings.Repeat("═", 72))
	printInfo("%-14s %-14s %12s  %-10s %s\n", "BASE", "END", "SIZE", "PARTITION", "OWNER")
	for _, d := range frames {
		part := partition(d)
		st := allocStyle
		if d.Free() {
			st = freeStyle
		}
		printInfo("%-14s %-14s %12s  %s %s\n",
			d.Base, d.End(), formatBytes(d.Size),
			styled(st, fmt.Sprintf("%-10s", part)), d.Owner)
	}
	return nil
}
