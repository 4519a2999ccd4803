package device

import (
	"context"
	"fmt"
)

// Handle is an opaque reference to a characteristic on the connected peripheral.
// UUID returns the normalized characteristic UUID and is stable for the connection.
type Handle interface {
	UUID() string
}

// Transport issues operations against characteristic handles.
//
// Every call is asynchronous: a nil return only means the request was accepted,
// the outcome arrives later as an Event carrying the same seq (0 when the backend
// cannot correlate). A non-nil return means the request was rejected and no
// completion event will follow.
type Transport interface {
	Read(seq uint64, h Handle) error
	Write(seq uint64, h Handle, data []byte) error
	EnableNotifications(seq uint64, h Handle) error
}

// EventKind classifies transport events
type EventKind int

const (
	ReadDone EventKind = iota + 1
	WriteDone
	DescriptorWriteDone
	Notification
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case ReadDone:
		return "read_done"
	case WriteDone:
		return "write_done"
	case DescriptorWriteDone:
		return "descriptor_write_done"
	case Notification:
		return "notification"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a single upward notification from the transport.
// Handle is nil for Disconnected. Err is set on failed completions.
type Event struct {
	Kind   EventKind
	Handle Handle
	Seq    uint64
	Data   []byte
	Err    error
}

// Link is one established connection with its discovered characteristics.
type Link interface {
	Transport

	// Characteristics returns the discovered handles keyed by normalized UUID.
	Characteristics() map[string]Handle

	// Events delivers completions, notifications and the final Disconnected event
	// in transport order. The channel is closed once the link is torn down.
	Events() <-chan Event

	Close() error
}

// Connection progress phases reported through ProgressCallback
const (
	PhaseScanning      = "Scanning"
	PhaseConnecting    = "Connecting"
	PhaseConnected     = "Connected"
	PhaseDiscovering   = "Discovering"
	PhaseServicesReady = "Services discovered"
	PhaseReady         = "Ready"
	PhaseFailed        = "Failed"
)

// ProgressCallback is called when the connection phase changes
type ProgressCallback func(phase string)

// Connector finds and connects to a single peripheral.
type Connector interface {
	// Enable prepares the local radio. It fails with ErrTransportUnavailable when
	// the adapter is absent or powered off.
	Enable() error

	// Connect scans (unless an address is configured), dials and discovers the
	// profile, reporting phases through progress. Discovery failures are returned
	// after PhaseConnected has been reported.
	Connect(ctx context.Context, progress ProgressCallback) (Link, error)
}
