package device

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "device", "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	if e.Resource == "characteristic" {
		return fmt.Sprintf("%s %q not found in service %q", e.Resource, strings.Join(e.UUIDs[1:], ", "), e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found", e.Resource, strings.Join(e.UUIDs, ", "))
}

// Unwrap maps the resource kind onto the matching sentinel so callers can use errors.Is.
func (e *NotFoundError) Unwrap() error {
	switch e.Resource {
	case "characteristic":
		return ErrCharacteristicMissing
	case "device":
		return ErrDeviceNotFound
	default:
		return nil
	}
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Transport and protocol errors
var (
	// ErrTransportUnavailable indicates the local radio is missing, powered off or not permitted.
	ErrTransportUnavailable = errors.New("bluetooth transport unavailable")
	// ErrDeviceNotFound indicates no advertising peripheral matched during the scan period.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrCharacteristicMissing indicates discovery completed without a required characteristic.
	ErrCharacteristicMissing = errors.New("required characteristic missing")
	// ErrOperationFailed indicates the transport reported a failed read, write or subscription.
	ErrOperationFailed = errors.New("operation failed")
	// ErrUnexpectedDisconnect indicates the link dropped while work was outstanding.
	ErrUnexpectedDisconnect = errors.New("unexpected disconnect")
	ErrTimeout              = errors.New("timeout")
)

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormalizeError maps well-known platform error strings to structured errors.
// Backend packages extend this with their own library-specific messages.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %w", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %w", ErrNotInitialized, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"), containsIgnoreCase(msg, "powered off"):
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	default:
		return err
	}
}
