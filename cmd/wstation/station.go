package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/inspector"
	"github.com/srg/wstation/internal/device"
	goble "github.com/srg/wstation/internal/device/go-ble"
	"github.com/srg/wstation/pkg/config"
	"github.com/srg/wstation/scanner"
)

// openConnector creates the station connector and its release function (can be overridden in tests)
var openConnector = func(cfg *config.Config, logger *logrus.Logger) (device.Connector, func() error) {
	c := goble.NewConnector(connectOptions(cfg), logger)
	return c, c.Close
}

// openRadio creates the radio used by scan and its release function (can be overridden in tests)
var openRadio = func() (scanner.Radio, func() error, error) {
	adapter, err := goble.AdapterFactory()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", device.ErrTransportUnavailable, goble.NormalizeError(err))
	}
	return adapter, adapter.Stop, nil
}

// connectOptions maps the configuration onto the go-ble connector settings
func connectOptions(cfg *config.Config) goble.ConnectOptions {
	opts := goble.DefaultConnectOptions()
	opts.Address = cfg.DeviceAddress
	opts.ConnectTimeout = cfg.ConnectTimeout
	opts.Scan.Duration = cfg.ScanTimeout
	opts.Scan.Name = cfg.DeviceName
	opts.Scan.StopOnFirst = true
	return opts
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withStation connects to the configured station, runs fn and disconnects,
// showing connection progress on the terminal.
func withStation[R any](ctx context.Context, cfg *config.Config, logger *logrus.Logger, fn inspector.InspectCallback[R]) (R, error) {
	var zero R

	loc, err := cfg.Location()
	if err != nil {
		return zero, err
	}

	connector, release := openConnector(cfg, logger)
	defer func() {
		if err := release(); err != nil {
			logger.WithError(err).Warn("failed to release Bluetooth adapter")
		}
	}()

	target := cfg.DeviceAddress
	if target == "" {
		target = cfg.DeviceName
	}
	progress := NewProgressPrinter(progressOutput(), fmt.Sprintf("Connecting to %s", target), device.PhaseScanning,
		device.PhaseReady, device.PhaseFailed)
	progress.Start()
	defer progress.Stop()

	opts := &inspector.Options{
		Profile:          cfg.StationProfile(),
		OperationTimeout: cfg.OperationTimeout,
		Location:         loc,
		Clock:            now,
	}
	return inspector.InspectStation(ctx, connector, opts, logger, progress.Callback(), func(st *inspector.Station) (R, error) {
		progress.Stop()
		return fn(st)
	})
}
