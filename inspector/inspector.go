// Package inspector runs one request against a weather station: connect, wait for
// the outcome reported through the session callbacks, disconnect.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/ringchan"
	"github.com/srg/wstation/internal/station"
)

// ErrConnectionLost indicates the link dropped while a request was waiting for its outcome.
var ErrConnectionLost = fmt.Errorf("connection lost: %w", device.ErrUnexpectedDisconnect)

// noteBuffer bounds the outcome notifications kept between waits
const noteBuffer = 16

// Options defines how the station session is set up
type Options struct {
	Profile          station.Profile
	OperationTimeout time.Duration
	Location         *time.Location
	Clock            func() time.Time
}

// InspectCallback processes a connected station and produces output of type R
type InspectCallback[R any] func(*Station) (R, error)

// InspectStation connects to the station, runs callback and disconnects.
// The station lifecycle is managed automatically.
func InspectStation[R any](ctx context.Context, connector device.Connector, opts *Options, logger *logrus.Logger, progress device.ProgressCallback, callback InspectCallback[R]) (R, error) {
	var zero R
	if opts == nil {
		opts = &Options{Profile: station.DefaultProfile()}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if progress == nil {
		progress = func(string) {}
	}

	st := &Station{notes: ringchan.New[note](noteBuffer), logger: logger}
	st.session = station.NewSession(station.Options{
		Service:          opts.Profile.Service,
		OperationTimeout: opts.OperationTimeout,
		Clock:            opts.Clock,
		Location:         opts.Location,
		Callbacks:        (*listener)(st),
		Logger:           logger,
	})

	client := station.NewClient(connector, st.session, opts.Profile, logger)
	if err := client.Initialize(); err != nil {
		progress(device.PhaseFailed)
		return zero, err
	}
	if err := client.BeginConnection(ctx, progress); err != nil {
		return zero, err
	}

	defer func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Error("failed to disconnect station")
		}
	}()

	return callback(st)
}

type noteKind int

const (
	noteCount noteKind = iota
	noteDateTimeSet
	noteFetchFinished
	noteFailed
	noteDisconnected
)

type note struct {
	kind  noteKind
	count uint32
	total int
	char  station.CharacteristicID
	err   error
}

// Station is a connected weather station that answers one request at a time.
type Station struct {
	session *station.Session
	notes   *ringchan.Ring[note]
	logger  *logrus.Logger

	mu       sync.Mutex
	onRecord func(station.WeatherRecord)
}

// Session exposes the underlying protocol session.
func (s *Station) Session() *station.Session {
	return s.session
}

// RecordCount reads the number of records stored on the station.
func (s *Station) RecordCount(ctx context.Context) (uint32, error) {
	s.drain()
	if err := s.session.RefreshRecordCount(); err != nil {
		return 0, err
	}

	var count uint32
	err := s.wait(ctx, func(n note) bool {
		if n.kind != noteCount {
			return false
		}
		count = n.count
		return true
	})
	return count, err
}

// FetchRecords reads every stored record. onRecord, when set, sees each record as it
// is assembled.
func (s *Station) FetchRecords(ctx context.Context, onRecord func(station.WeatherRecord)) ([]station.WeatherRecord, error) {
	s.mu.Lock()
	s.onRecord = onRecord
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.onRecord = nil
		s.mu.Unlock()
	}()

	before := len(s.session.Records())
	s.drain()
	if err := s.session.BeginBulkFetch(); err != nil {
		return nil, err
	}

	err := s.wait(ctx, func(n note) bool { return n.kind == noteFetchFinished })
	records := s.session.Records()[before:]
	return records, err
}

// SetDateAndTime writes the current clock to the station.
func (s *Station) SetDateAndTime(ctx context.Context) error {
	s.drain()
	if err := s.session.SetCurrentDateAndTime(); err != nil {
		return err
	}
	return s.wait(ctx, func(n note) bool { return n.kind == noteDateTimeSet })
}

func (s *Station) drain() {
	for {
		if _, ok := s.notes.TryPop(); !ok {
			return
		}
	}
}

// wait consumes notes until done accepts one. Failures and link loss end the wait.
func (s *Station) wait(ctx context.Context, done func(note) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-s.notes.C():
			switch n.kind {
			case noteFailed:
				return fmt.Errorf("%s: %w", n.char, n.err)
			case noteDisconnected:
				return ErrConnectionLost
			}
			if done(n) {
				return nil
			}
		}
	}
}

func (s *Station) push(n note) {
	if s.notes.Push(n) {
		s.logger.WithFields(logrus.Fields{
			"kind":    n.kind,
			"dropped": s.notes.Stats().Overwritten,
		}).Warn("Outcome buffer full, dropped oldest")
	}
}

// listener adapts a Station to station.Callbacks
type listener Station

func (l *listener) station() *Station { return (*Station)(l) }

func (l *listener) DeviceConnected() {}

func (l *listener) DeviceDisconnected() {
	l.station().push(note{kind: noteDisconnected})
}

func (l *listener) DiscoveryFinished(ok bool) {
	if !ok {
		l.logger.Debug("Discovery finished without a usable profile")
	}
}

func (l *listener) RecordFetched(rec station.WeatherRecord) {
	l.mu.Lock()
	fn := l.onRecord
	l.mu.Unlock()
	if fn != nil {
		fn(rec)
	}
}

func (l *listener) RecordCountUpdated(count uint32) {
	l.station().push(note{kind: noteCount, count: count})
}

func (l *listener) DateTimeSetComplete() {
	l.station().push(note{kind: noteDateTimeSet})
}

func (l *listener) FetchFinished(total int) {
	l.station().push(note{kind: noteFetchFinished, total: total})
}

func (l *listener) OperationFailed(id station.CharacteristicID, err error) {
	if err == nil {
		err = errors.New("unknown failure")
	}
	l.station().push(note{kind: noteFailed, char: id, err: err})
}
