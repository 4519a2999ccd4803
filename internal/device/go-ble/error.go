package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/wstation/internal/device"
)

// errorRules maps lowercase fragments of go-ble and HCI error strings to device errors.
// First match wins.
var errorRules = []struct {
	fragment string
	target   error
}{
	{"central manager has invalid state", device.ErrTransportUnavailable},
	{"can't init hci", device.ErrTransportUnavailable},
	{"operation not permitted", device.ErrTransportUnavailable},
	{"disconnected", device.ErrNotConnected},
	{"connection timed out", device.ErrTimeout},
	{"att: ", device.ErrOperationFailed},
}

// NormalizeError wraps go-ble errors with the matching device error so callers can use
// errors.Is. The original error text is kept.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range errorRules {
		if strings.Contains(msg, rule.fragment) {
			return fmt.Errorf("%w: %w", rule.target, err)
		}
	}
	return device.NormalizeError(err)
}
