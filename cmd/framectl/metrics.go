package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/framekit/frame/metrics"
)

func init() {
	rootCmd.AddCommand(newMetricsCmd())
}

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [script]",
		Short: "Print allocator metrics in Prometheus text format",
		Long: `The metrics command boots the memory manager, optionally runs a script
without printing its steps, and writes the allocator metrics in the Prometheus
text exposition format.

Example:
  framectl metrics
  framectl metrics boot.script`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(args)
		},
	}
	return cmd
}

func runMetrics(args []string) error {
	m, err := boot()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		saved := quiet
		quiet = true
		_, err = execScript(m, f)
		quiet = saved
		if err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(m)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
