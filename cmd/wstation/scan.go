package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for weather stations",
	Long: `Scan for Bluetooth Low Energy devices and list the ones whose advertised
name starts with the configured station name (--name). Use --all to list every device.

Results are sorted by signal strength, strongest first.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanAll      bool
	scanServices []string
	scanAllow    []string
	scanBlock    []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (0 keeps the configured scan timeout)")
	scanCmd.Flags().StringP("format", "f", "table", "Output format (table, json, csv)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "List every device, not only stations")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Only list devices advertising these service UUIDs")
	scanCmd.Flags().StringSliceVar(&scanAllow, "allow", nil, "Only list devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlock, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	var services []string
	if len(scanServices) > 0 {
		if services, err = device.ValidateUUID(scanServices...); err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	opts.ServiceUUIDs = services
	opts.AllowList = scanAllow
	opts.BlockList = scanBlock
	if !scanAll {
		opts.NamePrefix = cfg.DeviceName
	}

	radio, release, err := openRadio()
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.WithError(err).Warn("failed to release Bluetooth adapter")
		}
	}()

	s, err := scanner.NewScanner(radio, logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	progress := NewCountdownProgressPrinter(progressOutput(), "Scanning for stations", device.PhaseScanning, opts.Duration)
	progress.Start()
	devices, err := s.Scan(ctx, opts, progress.Callback())
	progress.Stop()

	// Ctrl+C ends the scan early; whatever was seen is still listed
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("scan failed")
		return err
	}

	return writeDevices(cmd.OutOrStdout(), cfg.OutputFormat, scanner.Sorted(devices))
}
