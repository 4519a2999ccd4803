package testutils

import (
	"sync"

	"github.com/srg/wstation/internal/station"
)

// Callback names recorded by CallbackRecorder
const (
	CbDeviceConnected     = "DeviceConnected"
	CbDeviceDisconnected  = "DeviceDisconnected"
	CbDiscoveryFinished   = "DiscoveryFinished"
	CbRecordFetched       = "RecordFetched"
	CbRecordCountUpdated  = "RecordCountUpdated"
	CbDateTimeSetComplete = "DateTimeSetComplete"
	CbFetchFinished       = "FetchFinished"
	CbOperationFailed     = "OperationFailed"
)

// CallbackEvent is one recorded upward callback.
type CallbackEvent struct {
	Name   string
	OK     bool
	Record station.WeatherRecord
	Count  uint32
	Total  int
	Char   station.CharacteristicID
	Err    error
}

// CallbackRecorder implements station.Callbacks and keeps every call in order.
type CallbackRecorder struct {
	mu     sync.Mutex
	events []CallbackEvent
}

func NewCallbackRecorder() *CallbackRecorder {
	return &CallbackRecorder{}
}

func (r *CallbackRecorder) add(ev CallbackEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *CallbackRecorder) DeviceConnected() { r.add(CallbackEvent{Name: CbDeviceConnected}) }

func (r *CallbackRecorder) DeviceDisconnected() { r.add(CallbackEvent{Name: CbDeviceDisconnected}) }

func (r *CallbackRecorder) DiscoveryFinished(ok bool) {
	r.add(CallbackEvent{Name: CbDiscoveryFinished, OK: ok})
}

func (r *CallbackRecorder) RecordFetched(rec station.WeatherRecord) {
	r.add(CallbackEvent{Name: CbRecordFetched, Record: rec})
}

func (r *CallbackRecorder) RecordCountUpdated(count uint32) {
	r.add(CallbackEvent{Name: CbRecordCountUpdated, Count: count})
}

func (r *CallbackRecorder) DateTimeSetComplete() { r.add(CallbackEvent{Name: CbDateTimeSetComplete}) }

func (r *CallbackRecorder) FetchFinished(total int) {
	r.add(CallbackEvent{Name: CbFetchFinished, Total: total})
}

func (r *CallbackRecorder) OperationFailed(id station.CharacteristicID, err error) {
	r.add(CallbackEvent{Name: CbOperationFailed, Char: id, Err: err})
}

// Events returns a copy of the recorded callbacks.
func (r *CallbackRecorder) Events() []CallbackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CallbackEvent(nil), r.events...)
}

// Names returns the recorded callback names in order.
func (r *CallbackRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

// Named returns the recorded callbacks called name.
func (r *CallbackRecorder) Named(name string) []CallbackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallbackEvent
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Records returns the records reported through RecordFetched.
func (r *CallbackRecorder) Records() []station.WeatherRecord {
	var out []station.WeatherRecord
	for _, ev := range r.Named(CbRecordFetched) {
		out = append(out, ev.Record)
	}
	return out
}

// Reset forgets every recorded callback.
func (r *CallbackRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
