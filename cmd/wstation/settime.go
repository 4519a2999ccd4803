package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/wstation/inspector"
)

// settimeCmd represents the settime command
var settimeCmd = &cobra.Command{
	Use:   "settime",
	Short: "Set the station clock to the current time",
	Long: `Writes the current date and time to the station and commits them.
The time is taken in the configured time zone (--timezone).`,
	Args: cobra.NoArgs,
	RunE: runSettime,
}

// now supplies the time written to the station clock (can be overridden in tests)
var now = time.Now

func runSettime(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var written time.Time
	_, err = withStation(ctx, cfg, logger, func(st *inspector.Station) (struct{}, error) {
		written = now().In(loc)
		return struct{}{}, st.SetDateAndTime(ctx)
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Station clock set to %s\n", written.Format("2006-01-02 15:04:05 Mon"))
	return err
}
