package main

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wstation/inspector"
	"github.com/srg/wstation/internal/station"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the records stored on the station",
	Long: `Connects to the station, reads the record count and then every stored record
in order: date, time, temperature, pressure and humidity.

Readings outside the sensor's plausible range are highlighted in the table output.

Examples:
  wstation fetch
  wstation fetch --latest
  wstation fetch --format csv > records.csv`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

var fetchLatest bool

func init() {
	fetchCmd.Flags().StringP("format", "f", "table", "Output format (table, json, csv)")
	fetchCmd.Flags().BoolVar(&fetchLatest, "latest", false, "Only show the most recent record")
}

func runFetch(cmd *cobra.Command, _ []string) error {
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

	records, err := withStation(ctx, cfg, logger, func(st *inspector.Station) ([]station.WeatherRecord, error) {
		return st.FetchRecords(ctx, func(r station.WeatherRecord) {
			logger.WithField("time", r.Time(loc).Format(recordTimeLayout)).Debug("Record received")
		})
	})
	if err != nil {
		if len(records) > 0 {
			writePartial(cmd.OutOrStdout(), logger, cfg.OutputFormat, records, loc)
		}
		return err
	}

	if fetchLatest && len(records) > 0 {
		records = records[len(records)-1:]
	}
	return writeRecords(cmd.OutOrStdout(), cfg.OutputFormat, records, loc)
}

// writePartial prints the records assembled before a fetch failed.
func writePartial(w io.Writer, logger *logrus.Logger, format string, records []station.WeatherRecord, loc *time.Location) {
	logger.WithField("records", len(records)).Warn("Fetch interrupted, showing partial results")
	if err := writeRecords(w, format, records, loc); err != nil {
		logger.WithError(err).Warn("Failed to write partial results")
	}
}
