package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/framekit/pkg/memmap"
)

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print the memory map in use",
		Long: `The map command prints the selected memory map, sorted and validated, as
YAML. With no --map it prints the built-in map, a starting point for custom ones.

Example:
  framectl map > qemu.yaml
  framectl map --map custom.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadMap()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(memmap.FromEntries(entries))
			}
			data, err := memmap.Marshal(entries)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
	return cmd
}
