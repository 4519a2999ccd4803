package device_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/wstation/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *device.NotFoundError
		message  string
		sentinel error
	}{
		{
			name:     "missing characteristics in service",
			err:      &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"7e8a0001", "humidity", "pressure"}},
			message:  `characteristic "humidity, pressure" not found in service "7e8a0001"`,
			sentinel: device.ErrCharacteristicMissing,
		},
		{
			name:     "device without filter",
			err:      &device.NotFoundError{Resource: "device"},
			message:  "device not found",
			sentinel: device.ErrDeviceNotFound,
		},
		{
			name:    "single service",
			err:     &device.NotFoundError{Resource: "service", UUIDs: []string{"180f"}},
			message: `service "180f" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			if tt.sentinel != nil {
				assert.ErrorIs(t, fmt.Errorf("connect: %w", tt.err), tt.sentinel)
			} else {
				assert.NoError(t, tt.err.Unwrap())
			}
		})
	}
}

func TestConnectionErrorIs(t *testing.T) {
	err := fmt.Errorf("refresh: %w", &device.ConnectionError{State: device.NotConnected, Msg: "characteristics not ready"})

	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.NotErrorIs(t, err, device.ErrAlreadyConnected)
	assert.Equal(t, "not_connected: characteristics not ready", errors.Unwrap(err).Error())
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Device not connected", device.ErrNotConnected},
		{"device already connected", device.ErrAlreadyConnected},
		{"connection is not initialized", device.ErrNotInitialized},
		{"Bluetooth is turned off", device.ErrTransportUnavailable},
		{"adapter powered off", device.ErrTransportUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			orig := errors.New(tt.msg)
			err := device.NormalizeError(orig)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, orig, "the original error MUST stay in the chain")
			assert.Contains(t, err.Error(), tt.msg, "the original message MUST be preserved")
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		orig := errors.New("att: insufficient authentication")
		assert.Same(t, orig, device.NormalizeError(orig))
	})

	assert.NoError(t, device.NormalizeError(nil))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "notification", device.Notification.String())
	assert.Equal(t, "disconnected", device.Disconnected.String())
}

func TestDeviceInfo(t *testing.T) {
	info := device.DeviceInfo{
		Address:  "AA:BB:CC:DD:EE:FF",
		Services: []string{"7e8a00013c1f4b2a9d5e6f0c1a2b3c4d"},
	}

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", info.DisplayName())
	assert.True(t, info.Advertises("7E8A0001-3C1F-4B2A-9D5E-6F0C1A2B3C4D"))
	assert.False(t, info.Advertises("180f"))

	info.Name = "WeatherStation"
	assert.Equal(t, "WeatherStation", info.DisplayName())
}
