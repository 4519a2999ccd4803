//go:build test

package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
	"github.com/stretchr/testify/suite"
)

// SessionSuite provides a reusable test suite around a station.Session driven by
// hand-delivered transport events.
//
// Basic usage:
//
//	type FetchSuite struct {
//	    testutils.SessionSuite
//	}
//
//	func TestFetchSuite(t *testing.T) {
//	    suite.Run(t, new(FetchSuite))
//	}
//
//	func (s *FetchSuite) TestSomething() {
//	    s.ConnectReady()
//	    s.Require().NoError(s.Session.RefreshRecordCount())
//	    s.Complete(device.ReadDone, station.RecordCount, []byte{0x05, 0x00})
//	}
//
// Embedding suites may set Options before SetupTest runs to customise the session.
type SessionSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	Profile   station.Profile
	Options   station.Options
	Transport *RecordingTransport
	Callbacks *CallbackRecorder
	Session   *station.Session
	Handles   map[station.CharacteristicID]device.Handle
}

// SetupTest creates a fresh disconnected session before each test.
func (s *SessionSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Profile = station.DefaultProfile()
	s.Transport = NewRecordingTransport(s.Profile)
	s.Callbacks = NewCallbackRecorder()
	s.Handles = FakeHandles(s.Profile)

	opts := s.Options
	opts.Logger = s.Logger
	opts.Callbacks = s.Callbacks
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Date(2024, time.March, 15, 14, 30, 45, 0, time.UTC) }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s.Session = station.NewSession(opts)
}

// TearDownTest resets per-test options.
func (s *SessionSuite) TearDownTest() {
	s.Options = station.Options{}
}

// ConnectReady walks the session through discovery and completes both subscriptions,
// leaving an idle queue and an empty callback log.
func (s *SessionSuite) ConnectReady() {
	s.Session.OnConnected(s.Transport)
	s.Session.OnServicesDiscovered(true)
	s.Require().NoError(s.Session.OnCharacteristicsDiscovered(s.Handles))
	s.Complete(device.DescriptorWriteDone, station.Control, nil)
	s.Complete(device.DescriptorWriteDone, station.RecordCount, nil)
	s.Require().Equal(0, s.Session.PendingOperations(), "subscriptions MUST leave the queue idle")
	s.Callbacks.Reset()
}

// Complete delivers a successful completion for id echoing the last sequence
// number issued on that characteristic.
func (s *SessionSuite) Complete(kind device.EventKind, id station.CharacteristicID, data []byte) {
	s.Session.HandleEvent(device.Event{Kind: kind, Handle: s.Handles[id], Seq: s.lastSeq(id), Data: data})
}

// FailOp delivers a failed completion for id.
func (s *SessionSuite) FailOp(kind device.EventKind, id station.CharacteristicID, err error) {
	s.Session.HandleEvent(device.Event{Kind: kind, Handle: s.Handles[id], Seq: s.lastSeq(id), Err: err})
}

// Notify delivers a notification on id.
func (s *SessionSuite) Notify(id station.CharacteristicID, data []byte) {
	s.Session.HandleEvent(device.Event{Kind: device.Notification, Handle: s.Handles[id], Data: data})
}

// RequireLastCall asserts the most recent transport request.
func (s *SessionSuite) RequireLastCall(kind station.OpKind, id station.CharacteristicID, msgAndArgs ...interface{}) TransportCall {
	call, ok := s.Transport.Last()
	s.Require().True(ok, "transport MUST have received a request")
	s.Require().Equal(kind, call.Kind, msgAndArgs...)
	s.Require().Equal(id, call.Char, msgAndArgs...)
	return call
}

func (s *SessionSuite) lastSeq(id station.CharacteristicID) uint64 {
	calls := s.Transport.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Char == id {
			return calls[i].Seq
		}
	}
	return 0
}
