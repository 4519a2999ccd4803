package testutils

import (
	"sync"

	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
)

// RecordingTransport records requests and never answers them; tests deliver the
// completions by hand through Session.HandleEvent.
type RecordingTransport struct {
	mu      sync.Mutex
	byUUID  map[string]station.CharacteristicID
	calls   []TransportCall
	rejects map[station.CharacteristicID]error
}

// NewRecordingTransport creates a transport resolving handles through profile.
func NewRecordingTransport(profile station.Profile) *RecordingTransport {
	t := &RecordingTransport{
		byUUID:  make(map[string]station.CharacteristicID, len(profile.Characteristics)),
		rejects: make(map[station.CharacteristicID]error),
	}
	for id, uuid := range profile.Characteristics {
		t.byUUID[device.NormalizeUUID(uuid)] = id
	}
	return t
}

// Reject makes every later request on id fail synchronously with err.
func (t *RecordingTransport) Reject(id station.CharacteristicID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejects[id] = err
}

func (t *RecordingTransport) record(kind station.OpKind, seq uint64, h device.Handle, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.byUUID[h.UUID()]
	var payload []byte
	if data != nil {
		payload = append([]byte(nil), data...)
	}
	t.calls = append(t.calls, TransportCall{Kind: kind, Char: id, Seq: seq, Data: payload})
	return t.rejects[id]
}

func (t *RecordingTransport) Read(seq uint64, h device.Handle) error {
	return t.record(station.OpRead, seq, h, nil)
}

func (t *RecordingTransport) Write(seq uint64, h device.Handle, data []byte) error {
	return t.record(station.OpWrite, seq, h, data)
}

func (t *RecordingTransport) EnableNotifications(seq uint64, h device.Handle) error {
	return t.record(station.OpSubscribe, seq, h, nil)
}

// Calls returns a copy of every request received so far.
func (t *RecordingTransport) Calls() []TransportCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TransportCall(nil), t.calls...)
}

// Last returns the most recent request.
func (t *RecordingTransport) Last() (TransportCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.calls) == 0 {
		return TransportCall{}, false
	}
	return t.calls[len(t.calls)-1], true
}

// Len returns the number of requests received.
func (t *RecordingTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
