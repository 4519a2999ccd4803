package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
)

// Session errors
var (
	// ErrNotReady is returned by requests made before characteristic discovery completed.
	ErrNotReady = fmt.Errorf("%w: characteristics not ready", device.ErrNotConnected)
	// ErrFetchInProgress is returned by BeginBulkFetch while a fetch is already running.
	ErrFetchInProgress = errors.New("bulk fetch already in progress")
)

// Options configures a Session
type Options struct {
	// Service is the station service UUID, used when reporting missing characteristics.
	Service string

	// OperationTimeout fails an in-flight operation that gets no completion in time.
	// Zero disables the timeout.
	OperationTimeout time.Duration

	// Clock supplies the time written by SetCurrentDateAndTime. Defaults to time.Now.
	Clock func() time.Time

	// Location is the zone the station clock runs in. Defaults to time.Local.
	Location *time.Location

	Callbacks Callbacks
	Logger    *logrus.Logger
}

// Session is the protocol engine for one weather station.
//
// All transport events and public calls are serialised by one mutex. Callbacks
// collected while handling a call or event are fired after the mutex is released,
// in the order they were produced.
type Session struct {
	mu sync.Mutex

	logger    *logrus.Logger
	callbacks Callbacks
	clock     func() time.Time
	location  *time.Location

	state             ConnectionState
	discoveryReported bool

	registry *Registry
	queue    *operationQueue
	asm      assembly
	records  RecordLog

	count      uint32
	countKnown bool

	nextGroup uint64
	fired     []func(Callbacks)
}

// NewSession creates a disconnected session.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = CallbackFuncs{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Service == "" {
		opts.Service = bledb.WeatherServiceUUID
	}

	s := &Session{
		logger:    opts.Logger,
		callbacks: opts.Callbacks,
		clock:     opts.Clock,
		location:  opts.Location,
		registry:  newRegistry(opts.Service),
	}
	s.queue = newOperationQueue(s.registry, opts.Logger)
	s.queue.timeout = opts.OperationTimeout
	s.queue.onTimeout = s.handleTimeout
	s.queue.onFailed = func(op Operation, err error) {
		s.dispatch(op, nil, err)
	}
	return s
}

// do runs fn under the session lock and fires the callbacks it produced afterwards.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	err := fn()
	fired := s.fired
	s.fired = nil
	s.mu.Unlock()

	for _, f := range fired {
		f(s.callbacks)
	}
	return err
}

func (s *Session) emit(f func(Callbacks)) {
	s.fired = append(s.fired, f)
}

func (s *Session) newGroup() uint64 {
	s.nextGroup++
	return s.nextGroup
}

// Run consumes transport events until ctx is cancelled or the channel is closed.
// A closed channel is treated as link loss.
func (s *Session) Run(ctx context.Context, events <-chan device.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.OnDisconnected()
				return nil
			}
			s.HandleEvent(ev)
		}
	}
}

// HandleEvent routes one transport event.
func (s *Session) HandleEvent(ev device.Event) {
	_ = s.do(func() error {
		s.route(ev)
		return nil
	})
}

func (s *Session) route(ev device.Event) {
	if ev.Kind == device.Disconnected {
		s.disconnect()
		return
	}

	id, ok := s.registry.Resolve(ev.Handle)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"event": ev.Kind.String(),
			"state": s.state.String(),
		}).Warn("Event for unknown characteristic, ignoring")
		return
	}

	switch ev.Kind {
	case device.Notification:
		s.onNotification(id, ev.Data)

	case device.ReadDone, device.WriteDone, device.DescriptorWriteDone:
		if expired, ok := s.queue.late(id, ev.Kind, ev.Seq); ok {
			s.logger.WithFields(logrus.Fields{
				"event": ev.Kind.String(),
				"op":    expired.String(),
				"seq":   ev.Seq,
			}).Warn("Late completion for a timed out operation, ignoring")
			return
		}

		op, ok := s.queue.complete(id, ev.Kind, ev.Seq)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"event":          ev.Kind.String(),
				"characteristic": id.String(),
				"seq":            ev.Seq,
			}).Warn("Completion does not match the in-flight operation, ignoring")
			return
		}

		err := ev.Err
		if err != nil && !errors.Is(err, device.ErrOperationFailed) {
			err = fmt.Errorf("%w: %s: %w", device.ErrOperationFailed, op, err)
		}
		s.dispatch(op, ev.Data, err)
		s.queue.pump()

	default:
		s.logger.WithField("event", ev.Kind.String()).Warn("Unknown transport event, ignoring")
	}
}

// dispatch hands a completed operation's result to the procedure that enqueued it.
func (s *Session) dispatch(op Operation, data []byte, err error) {
	fields := logrus.Fields{"op": op.String(), "sequence": op.Sequence.String()}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Debug("Operation failed")
	} else {
		s.logger.WithFields(fields).WithField("len", len(data)).Debug("Operation completed")
	}

	switch op.Sequence {
	case SeqSubscribe:
		s.onSubscribeResult(op, err)
	case SeqCountRefresh:
		s.onCountRefreshResult(op, data, err)
	case SeqBulkFetch:
		s.onFetchResult(op, data, err)
	case SeqDateTime:
		s.onDateTimeResult(op, err)
	}
}

func (s *Session) handleTimeout(op Operation) {
	_ = s.do(func() error {
		if !s.queue.expire(op) {
			return nil
		}
		s.logger.WithFields(logrus.Fields{
			"op":      op.String(),
			"timeout": s.queue.timeout,
		}).Warn("Operation timed out")
		s.dispatch(op, nil, fmt.Errorf("%w: %s after %s", device.ErrTimeout, op, s.queue.timeout))
		s.queue.pump()
		return nil
	})
}

func (s *Session) onNotification(id CharacteristicID, data []byte) {
	switch id {
	case Control:
		s.onControlNotification(data)
	case RecordCount:
		n, err := DecodeRecordCount(data)
		if err != nil {
			s.logger.WithError(err).Warn("Ignoring malformed record count notification")
			return
		}
		s.setCount(n)
	default:
		s.logger.WithField("characteristic", id.String()).Debug("Ignoring notification")
	}
}

func (s *Session) onSubscribeResult(op Operation, err error) {
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"characteristic": op.Target.String(),
			"error":          err,
		}).Error("Failed to enable notifications")
		s.emit(func(cb Callbacks) { cb.OperationFailed(op.Target, err) })
		return
	}
	s.logger.WithField("characteristic", op.Target.String()).Debug("Notifications enabled")
}

func (s *Session) setCount(n uint32) {
	s.count = n
	s.countKnown = true
	s.logger.WithField("count", n).Debug("Record count updated")
	s.emit(func(cb Callbacks) { cb.RecordCountUpdated(n) })
}

// State returns the connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RecordCount returns the last known number of records stored on the station.
func (s *Session) RecordCount() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.countKnown
}

// AssemblyState returns the state of the record assembly state machine.
func (s *Session) AssemblyState() AssemblyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asm.state
}

// PendingOperations returns the number of queued operations, in flight included.
func (s *Session) PendingOperations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// Records returns a copy of every record fetched during the session's lifetime.
func (s *Session) Records() []WeatherRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.All()
}

// Latest returns the most recently fetched record and its index (-1 when none).
func (s *Session) Latest() (WeatherRecord, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records.Latest()
	return rec, s.records.LatestIndex(), ok
}

// Location returns the zone used for record timestamps and clock writes.
func (s *Session) Location() *time.Location {
	return s.location
}
