package main

import (
	"github.com/spf13/cobra"
	"github.com/srg/wstation/inspector"
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many records the station holds",
	Long: `Connects to the station and reads the number of stored weather records.

Examples:
  wstation count
  wstation count --address AA:BB:CC:DD:EE:FF --format json`,
	Args: cobra.NoArgs,
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringP("format", "f", "table", "Output format (table, json, csv)")
}

func runCount(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	count, err := withStation(ctx, cfg, logger, func(st *inspector.Station) (uint32, error) {
		return st.RecordCount(ctx)
	})
	if err != nil {
		return err
	}
	return writeCount(cmd.OutOrStdout(), cfg.OutputFormat, count)
}
