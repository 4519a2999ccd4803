package testutils

import (
	"context"
	"sync"

	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
)

// FakeHandle is a characteristic handle identified only by its UUID.
type FakeHandle string

func (h FakeHandle) UUID() string { return string(h) }

// FakeHandles returns handles for every characteristic of profile.
func FakeHandles(profile station.Profile) map[station.CharacteristicID]device.Handle {
	out := make(map[station.CharacteristicID]device.Handle, len(profile.Characteristics))
	for id, uuid := range profile.Characteristics {
		out[id] = FakeHandle(device.NormalizeUUID(uuid))
	}
	return out
}

// TransportCall is one request received by a fake transport.
type TransportCall struct {
	Kind station.OpKind
	Char station.CharacteristicID
	Seq  uint64
	Data []byte
}

// FakeStation simulates a weather station behind a device.Connector and device.Link.
//
// Reads return the values of the record under the device cursor, GET_DATA rewinds
// the cursor, FETCH_NEXT_RECORD advances it and notifies NEXT_RECORD_AVAILABLE while
// records remain. Responses are delivered asynchronously on Events in request order.
type FakeStation struct {
	mu      sync.Mutex
	cond    *sync.Cond
	profile station.Profile
	byUUID  map[string]station.CharacteristicID

	records []station.WeatherRecord
	cursor  int
	date    []byte
	time    []byte
	clockOK bool
	subs    map[station.CharacteristicID]bool
	calls   []TransportCall

	enableErr  error
	connectErr error
	omitted    map[station.CharacteristicID]bool
	rejects    map[station.CharacteristicID]error
	failures   map[station.CharacteristicID]error
	echoSeq    bool

	events  chan device.Event
	backlog []device.Event
	closing bool
	open    bool
}

// NewFakeStation creates a station holding records, using the default profile.
func NewFakeStation(records ...station.WeatherRecord) *FakeStation {
	f := &FakeStation{
		profile:  station.DefaultProfile(),
		records:  records,
		subs:     make(map[station.CharacteristicID]bool),
		omitted:  make(map[station.CharacteristicID]bool),
		rejects:  make(map[station.CharacteristicID]error),
		failures: make(map[station.CharacteristicID]error),
		echoSeq:  true,
	}
	f.cond = sync.NewCond(&f.mu)
	f.byUUID = make(map[string]station.CharacteristicID, len(f.profile.Characteristics))
	for id, uuid := range f.profile.Characteristics {
		f.byUUID[device.NormalizeUUID(uuid)] = id
	}
	return f
}

// WithEnableError makes Enable fail with err.
func (f *FakeStation) WithEnableError(err error) *FakeStation {
	f.enableErr = err
	return f
}

// WithConnectError makes Connect fail with err.
func (f *FakeStation) WithConnectError(err error) *FakeStation {
	f.connectErr = err
	return f
}

// WithoutCharacteristic hides id from the discovered profile.
func (f *FakeStation) WithoutCharacteristic(id station.CharacteristicID) *FakeStation {
	f.omitted[id] = true
	return f
}

// WithoutSeqEcho makes completions carry seq 0, as transports that cannot correlate do.
func (f *FakeStation) WithoutSeqEcho() *FakeStation {
	f.echoSeq = false
	return f
}

// Reject makes requests on id fail synchronously with err.
func (f *FakeStation) Reject(id station.CharacteristicID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects[id] = err
}

// Fail makes requests on id complete with err.
func (f *FakeStation) Fail(id station.CharacteristicID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = err
}

// Enable implements device.Connector.
func (f *FakeStation) Enable() error {
	return f.enableErr
}

// Connect implements device.Connector.
func (f *FakeStation) Connect(_ context.Context, progress device.ProgressCallback) (device.Link, error) {
	if progress == nil {
		progress = func(string) {}
	}
	progress(device.PhaseScanning)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	progress(device.PhaseConnecting)
	progress(device.PhaseConnected)
	progress(device.PhaseDiscovering)

	f.mu.Lock()
	f.events = make(chan device.Event)
	f.backlog = nil
	f.closing = false
	f.open = true
	f.mu.Unlock()
	go f.forward()

	progress(device.PhaseServicesReady)
	return f, nil
}

// Characteristics implements device.Link.
func (f *FakeStation) Characteristics() map[string]device.Handle {
	out := make(map[string]device.Handle)
	for id, uuid := range f.profile.Characteristics {
		if f.omitted[id] {
			continue
		}
		n := device.NormalizeUUID(uuid)
		out[n] = FakeHandle(n)
	}
	return out
}

// Events implements device.Link.
func (f *FakeStation) Events() <-chan device.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// Close implements device.Link.
func (f *FakeStation) Close() error {
	f.Drop()
	return nil
}

// Drop simulates link loss.
func (f *FakeStation) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return
	}
	f.open = false
	f.backlog = append(f.backlog, device.Event{Kind: device.Disconnected})
	f.closing = true
	f.cond.Signal()
}

// NotifyRecordCount sends a record-count notification.
func (f *FakeStation) NotifyRecordCount(n uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postLocked(device.Event{Kind: device.Notification, Handle: f.handle(station.RecordCount), Data: station.EncodeRecordCount(n)})
}

// Read implements device.Transport.
func (f *FakeStation) Read(seq uint64, h device.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.byUUID[h.UUID()]
	f.calls = append(f.calls, TransportCall{Kind: station.OpRead, Char: id, Seq: seq})
	if err := f.rejects[id]; err != nil {
		return err
	}
	f.postLocked(device.Event{Kind: device.ReadDone, Handle: h, Seq: f.seq(seq), Data: f.valueLocked(id), Err: f.failures[id]})
	return nil
}

// Write implements device.Transport.
func (f *FakeStation) Write(seq uint64, h device.Handle, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.byUUID[h.UUID()]
	f.calls = append(f.calls, TransportCall{Kind: station.OpWrite, Char: id, Seq: seq, Data: append([]byte(nil), data...)})
	if err := f.rejects[id]; err != nil {
		return err
	}
	if err := f.failures[id]; err != nil {
		f.postLocked(device.Event{Kind: device.WriteDone, Handle: h, Seq: f.seq(seq), Err: err})
		return nil
	}

	notifyNext := false
	switch id {
	case station.Date:
		f.date = append([]byte(nil), data...)
	case station.Time:
		f.time = append([]byte(nil), data...)
	case station.Control:
		if len(data) > 0 {
			switch data[0] {
			case station.CmdGetData:
				f.cursor = 0
			case station.CmdFetchNextRecord:
				f.cursor++
				notifyNext = f.cursor < len(f.records)
			case station.CmdSetDateAndTime:
				f.clockOK = len(f.date) > 0 && len(f.time) > 0
			}
		}
	}

	f.postLocked(device.Event{Kind: device.WriteDone, Handle: h, Seq: f.seq(seq)})
	if notifyNext && f.subs[station.Control] {
		f.postLocked(device.Event{Kind: device.Notification, Handle: f.handle(station.Control), Data: []byte{station.NotifyNextRecordAvailable}})
	}
	return nil
}

// EnableNotifications implements device.Transport.
func (f *FakeStation) EnableNotifications(seq uint64, h device.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.byUUID[h.UUID()]
	f.calls = append(f.calls, TransportCall{Kind: station.OpSubscribe, Char: id, Seq: seq})
	if err := f.rejects[id]; err != nil {
		return err
	}
	if f.failures[id] == nil {
		f.subs[id] = true
	}
	f.postLocked(device.Event{Kind: device.DescriptorWriteDone, Handle: h, Seq: f.seq(seq), Err: f.failures[id]})
	return nil
}

// Calls returns a copy of every request received so far.
func (f *FakeStation) Calls() []TransportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TransportCall(nil), f.calls...)
}

// ClockWrites returns the date and time bytes committed with SET_DATE_AND_TIME.
func (f *FakeStation) ClockWrites() (date, tm []byte, committed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date, f.time, f.clockOK
}

// Subscribed reports whether notifications are enabled for id.
func (f *FakeStation) Subscribed(id station.CharacteristicID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id]
}

func (f *FakeStation) seq(seq uint64) uint64 {
	if f.echoSeq {
		return seq
	}
	return 0
}

func (f *FakeStation) handle(id station.CharacteristicID) device.Handle {
	return FakeHandle(device.NormalizeUUID(f.profile.Characteristics[id]))
}

func (f *FakeStation) valueLocked(id station.CharacteristicID) []byte {
	if id == station.RecordCount {
		return station.EncodeRecordCount(uint16(len(f.records)))
	}
	if f.cursor >= len(f.records) {
		return nil
	}
	rec := f.records[f.cursor]
	switch id {
	case station.Time:
		return []byte{byte(rec.Hour), byte(rec.Minute), byte(rec.Second)}
	case station.Date:
		date, _ := station.EncodeDate(rec.Time(nil))
		return date
	case station.Temperature:
		return station.EncodeFixedPoint(rec.Temperature)
	case station.Pressure:
		return station.EncodeFixedPoint(rec.Pressure)
	case station.Humidity:
		return station.EncodeFixedPoint(rec.Humidity)
	default:
		return nil
	}
}

func (f *FakeStation) postLocked(ev device.Event) {
	if !f.open {
		return
	}
	f.backlog = append(f.backlog, ev)
	f.cond.Signal()
}

// forward delivers the backlog in order and closes Events after a drop.
func (f *FakeStation) forward() {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	defer close(events)

	for {
		f.mu.Lock()
		for len(f.backlog) == 0 && !f.closing {
			f.cond.Wait()
		}
		batch := f.backlog
		f.backlog = nil
		done := f.closing && len(batch) == 0
		f.mu.Unlock()

		if done {
			return
		}
		for _, ev := range batch {
			events <- ev
		}
	}
}
