package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Client is the part of ble.Client the station link uses.
type Client interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// Adapter is the local radio: it scans, dials and is stopped when done.
type Adapter interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, addr ble.Addr) (Client, error)
	Stop() error
}

// DeviceFactory creates ble.Device instances for the host platform (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// AdapterFactory creates the Adapter used by a Connector (can be overridden in tests)
var AdapterFactory = func() (Adapter, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, err
	}
	return &deviceAdapter{dev: dev}, nil
}

// deviceAdapter narrows a ble.Device to Adapter
type deviceAdapter struct {
	dev ble.Device
}

func (a *deviceAdapter) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return a.dev.Scan(ctx, allowDup, h)
}

func (a *deviceAdapter) Dial(ctx context.Context, addr ble.Addr) (Client, error) {
	cln, err := a.dev.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cln, nil
}

func (a *deviceAdapter) Stop() error {
	return a.dev.Stop()
}
