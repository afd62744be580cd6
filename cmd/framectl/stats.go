package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/framekit/frame/alloc"
	"github.com/joshuapare/framekit/frame/pmm"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory and allocator statistics",
		Long: `The stats command boots the memory manager and shows free and total
memory, frame counts and operation counters.

Example:
  framectl stats
  framectl stats --map qemu.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := boot()
			if err != nil {
				return err
			}
			return printStats(m)
		},
	}
	return cmd
}

// StatsJSON is the JSON form of the stats output.
type StatsJSON struct {
	Boundary    string `json:"boundary"`
	Bookkeeping string `json:"bookkeeping"`
	alloc.Stats
}

func statsJSON(m *pmm.Manager) StatsJSON {
	return StatsJSON{
		Boundary:    m.Boundary().String(),
		Bookkeeping: m.Bookkeeping().String(),
		Stats:       m.Stats(),
	}
}

func printStats(m *pmm.Manager) error {
	if jsonOut {
		return printJSON(statsJSON(m))
	}
	s := m.Stats()
	bk := m.Bookkeeping()

	printInfo("\n")
	printHeading("Memory Statistics")
	printInfo("%s\n\n", strings.Repeat("═", 40))

	printHeading("Memory:")
	printInfo("  Boundary: %s\n", m.Boundary())
	printInfo("  Total: %s (%s bytes, %s pages)\n",
		formatBytes(s.TotalBytes), formatNumber(s.TotalBytes), formatNumber(s.TotalPages))
	printInfo("  Free: %s (%s bytes, %s pages)\n",
		styled(freeStyle, formatBytes(s.FreeBytes)), formatNumber(s.FreeBytes), formatNumber(s.FreePages))
	printInfo("  Allocated: %s (%s bytes)\n",
		styled(allocStyle, formatBytes(s.AllocBytes)), formatNumber(s.AllocBytes))
	if bk.Size != 0 {
		printInfo("  Bookkeeping: %s at %s\n", formatBytes(bk.Size), bk.Base)
	}
	printInfo("\n")

	printHeading("Frames:")
	printInfo("  Free: %s\n", formatNumber(uint64(s.FreeFrames)))
	printInfo("  Allocated: %s\n", formatNumber(uint64(s.AllocFrames)))
	printInfo("  Largest Free: %s\n", formatBytes(s.LargestFree))
	printInfo("  Slots: %s / %s\n\n", formatNumber(uint64(s.SlotsUsed)), formatNumber(uint64(s.SlotCapacity)))

	printHeading("Operations:")
	printInfo("  Allocations: %s\n", formatNumber(s.Allocations))
	printInfo("  Deallocations: %s\n", formatNumber(s.Deallocations))
	printInfo("  Failures: %s\n", formatNumber(s.Failures))
	printInfo("  Coalesces: %s\n", formatNumber(s.Coalesces))
	printInfo("  Merges: %s\n", formatNumber(s.Merges))
	printInfo("  Splits: %s\n", formatNumber(s.Splits))
	printInfo("%s\n", styled(mutedStyle, "(counters include bootstrap)"))
	return nil
}
