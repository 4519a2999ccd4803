package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/wstation/inspector"
	"github.com/srg/wstation/internal/device"
)

// FormatUserError turns an error chain into a message with a hint where one helps.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, device.ErrTransportUnavailable):
		return fmt.Sprintf("%s\nHint: make sure Bluetooth is turned on and this program is allowed to use it", err)
	case errors.Is(err, device.ErrDeviceNotFound):
		return fmt.Sprintf("%s\nHint: check that the station is powered and in range, or pass --address", err)
	case errors.Is(err, device.ErrCharacteristicMissing):
		return fmt.Sprintf("%s\nHint: the device does not look like a supported weather station; check the profile UUIDs in the config file", err)
	case errors.Is(err, inspector.ErrConnectionLost):
		return "connection to the station was lost before the request finished"
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s\nHint: move closer to the station or raise --timeout", err)
	default:
		return err.Error()
	}
}
