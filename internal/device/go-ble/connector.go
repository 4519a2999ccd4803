package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/scanner"
)

// ConnectOptions configures how a Connector reaches the station.
type ConnectOptions struct {
	// Address skips the scan when set.
	Address string

	// Scan selects the station when no address is given.
	Scan scanner.ScanOptions

	ConnectTimeout time.Duration `default:"20s"`
	EventBuffer    int           `default:"64"`
}

// DefaultConnectOptions returns the default connection options
func DefaultConnectOptions() ConnectOptions {
	opts := ConnectOptions{}
	defaults.SetDefaults(&opts)
	defaults.SetDefaults(&opts.Scan)
	return opts
}

// Connector implements device.Connector on top of go-ble.
type Connector struct {
	opts   ConnectOptions
	logger *logrus.Logger

	mu      sync.Mutex
	adapter Adapter
}

// NewConnector creates a connector. Enable must be called before Connect.
func NewConnector(opts ConnectOptions, logger *logrus.Logger) *Connector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Connector{opts: opts, logger: logger}
}

// Enable opens the host adapter.
func (c *Connector) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adapter != nil {
		return nil
	}

	adapter, err := AdapterFactory()
	if err != nil {
		err = NormalizeError(err)
		if !errors.Is(err, device.ErrTransportUnavailable) {
			err = fmt.Errorf("%w: %w", device.ErrTransportUnavailable, err)
		}
		c.logger.WithError(err).Error("Failed to create BLE device")
		return err
	}
	c.adapter = adapter
	return nil
}

// Adapter returns the enabled adapter, or nil before Enable.
func (c *Connector) Adapter() Adapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter
}

// Connect implements device.Connector.
func (c *Connector) Connect(ctx context.Context, progress device.ProgressCallback) (device.Link, error) {
	adapter := c.Adapter()
	if adapter == nil {
		return nil, device.ErrNotInitialized
	}
	if progress == nil {
		progress = func(string) {}
	}

	address := strings.TrimSpace(c.opts.Address)
	if address == "" {
		sc, err := scanner.NewScanner(adapter, c.logger)
		if err != nil {
			return nil, err
		}
		found, err := sc.Find(ctx, &c.opts.Scan, progress)
		if err != nil {
			return nil, err
		}
		c.logger.WithFields(logrus.Fields{
			"device":  found.DisplayName(),
			"address": found.Address,
			"rssi":    found.RSSI,
		}).Info("Weather station found")
		address = found.Address
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": c.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")
	progress(device.PhaseConnecting)

	dialCtx := ctx
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	client, err := adapter.Dial(dialCtx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}
	progress(device.PhaseConnected)

	progress(device.PhaseDiscovering)
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	c.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Debug("Profile discovered successfully")
	progress(device.PhaseServicesReady)

	return NewLink(client, profile, c.opts.EventBuffer, c.logger), nil
}

// Close releases the host adapter.
func (c *Connector) Close() error {
	c.mu.Lock()
	adapter := c.adapter
	c.adapter = nil
	c.mu.Unlock()

	if adapter == nil {
		return nil
	}
	return NormalizeError(adapter.Stop())
}
