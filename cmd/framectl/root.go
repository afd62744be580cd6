package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/framekit/frame"
	"github.com/joshuapare/framekit/frame/pmm"
	"github.com/joshuapare/framekit/internal/logger"
	"github.com/joshuapare/framekit/pkg/memmap"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	mapPath string
)

var rootCmd = &cobra.Command{
	Use:   "framectl",
	Short: "Boot and exercise the physical frame allocator",
	Long: `framectl boots the physical memory manager from a memory map and inspects
or drives it. Without --map it uses a built-in 128MiB QEMU guest layout.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := logger.Init(logger.Options{
			Enabled: verbose && !quiet,
			Level:   slog.LevelDebug,
		})
		return err
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&mapPath, "map", "m", "", "Memory map file (YAML or JSON)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadMap returns the --map entries or the built-in map.
func loadMap() ([]frame.MemoryMapEntry, error) {
	if mapPath == "" {
		printVerbose("Using built-in memory map\n")
		return memmap.Default(), nil
	}
	printVerbose("Loading memory map: %s\n", mapPath)
	return memmap.Load(mapPath)
}

// boot brings up a manager from the selected memory map.
func boot() (*pmm.Manager, error) {
	entries, err := loadMap()
	if err != nil {
		return nil, err
	}
	m, err := pmm.Bootstrap(entries)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return m, nil
}

// Styles

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	freeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	allocStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4B4B"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// styled renders s with st unless colors are disabled.
func styled(st lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return st.Render(s)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printHeading prints a section title if not in quiet mode
func printHeading(title string) {
	printInfo("%s\n", styled(headingStyle, title))
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, styled(errorStyle, "Error: ")+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var printer = message.NewPrinter(language.English)

// formatNumber groups digits: 134217728 becomes "134,217,728".
func formatNumber(n uint64) string {
	return printer.Sprintf("%d", n)
}

// formatBytes renders a byte count with a binary unit, e.g. "127.5MiB".
func formatBytes(n uint64) string {
	return units.BytesSize(float64(n))
}
