package goble_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
	goble "github.com/srg/wstation/internal/device/go-ble"
	"github.com/srg/wstation/internal/testutils"
	"github.com/srg/wstation/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type stationProfile struct {
	profile     *ble.Profile
	control     *ble.Characteristic
	recordCount *ble.Characteristic
	time        *ble.Characteristic
}

func newStationProfile() stationProfile {
	p := stationProfile{
		control:     &ble.Characteristic{UUID: ble.MustParse(bledb.ControlUUID), Property: ble.CharWrite | ble.CharNotify},
		recordCount: &ble.Characteristic{UUID: ble.MustParse(bledb.RecordCountUUID), Property: ble.CharRead | ble.CharIndicate},
		time:        &ble.Characteristic{UUID: ble.MustParse(bledb.TimeUUID), Property: ble.CharRead | ble.CharWrite},
	}
	p.profile = &ble.Profile{Services: []*ble.Service{{
		UUID:            ble.MustParse(bledb.WeatherServiceUUID),
		Characteristics: []*ble.Characteristic{p.control, p.recordCount, p.time},
	}}}
	return p
}

type LinkTestSuite struct {
	suite.Suite

	client *mocks.MockClient
	chars  stationProfile
	link   *goble.Link
}

func TestLinkTestSuite(t *testing.T) {
	suite.Run(t, new(LinkTestSuite))
}

func (s *LinkTestSuite) SetupTest() {
	s.client = &mocks.MockClient{}
	s.client.On("Unsubscribe", mock.Anything, mock.Anything).Return(nil).Maybe()
	s.client.On("CancelConnection").Return(nil).Maybe()
	s.chars = newStationProfile()
	s.link = goble.NewLink(s.client, s.chars.profile, 8, testutils.NewTestLogger(s.T()))
}

func (s *LinkTestSuite) TearDownTest() {
	_ = s.link.Close()
}

func (s *LinkTestSuite) handle(uuid string) device.Handle {
	h, ok := s.link.Characteristics()[device.NormalizeUUID(uuid)]
	s.Require().True(ok, "characteristic %s MUST be discovered", uuid)
	return h
}

func (s *LinkTestSuite) nextEvent() device.Event {
	select {
	case ev, ok := <-s.link.Events():
		s.Require().True(ok, "events closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		s.FailNow("no event delivered")
		return device.Event{}
	}
}

func (s *LinkTestSuite) requireClosed() {
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.link.Events():
			if !ok {
				return
			}
		case <-deadline:
			s.FailNow("events channel was not closed")
		}
	}
}

func (s *LinkTestSuite) TestCharacteristicsAreNormalized() {
	chars := s.link.Characteristics()

	s.Len(chars, 3)
	for uuid, h := range chars {
		s.Equal(uuid, h.UUID())
	}
	s.Contains(chars, "7e8a00053c1f4b2a9d5e6f0c1a2b3c4d")
}

func (s *LinkTestSuite) TestReadCompletesWithSeq() {
	s.client.On("ReadCharacteristic", s.chars.time).Return([]byte{14, 30, 45}, nil).Once()

	h := s.handle(bledb.TimeUUID)
	s.Require().NoError(s.link.Read(7, h))

	ev := s.nextEvent()
	s.Equal(device.ReadDone, ev.Kind)
	s.Equal(uint64(7), ev.Seq)
	s.Equal(h, ev.Handle)
	s.Equal([]byte{14, 30, 45}, ev.Data)
	s.NoError(ev.Err)
}

func (s *LinkTestSuite) TestWriteFailureIsNormalized() {
	s.client.On("WriteCharacteristic", s.chars.control, []byte{0x02}, false).
		Return(errors.New("write failed: disconnected")).Once()

	s.Require().NoError(s.link.Write(3, s.handle(bledb.ControlUUID), []byte{0x02}))

	ev := s.nextEvent()
	s.Equal(device.WriteDone, ev.Kind)
	s.ErrorIs(ev.Err, device.ErrNotConnected)
}

func (s *LinkTestSuite) TestSubscribeDeliversNotifications() {
	var handler ble.NotificationHandler
	s.client.On("Subscribe", s.chars.control, false, mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(ble.NotificationHandler) }).
		Return(nil).Once()

	h := s.handle(bledb.ControlUUID)
	s.Require().NoError(s.link.EnableNotifications(1, h))

	ev := s.nextEvent()
	s.Equal(device.DescriptorWriteDone, ev.Kind)
	s.Require().NoError(ev.Err)
	s.Require().NotNil(handler)

	buf := []byte{0x04}
	handler(buf)
	buf[0] = 0xff

	ev = s.nextEvent()
	s.Equal(device.Notification, ev.Kind)
	s.Equal(h, ev.Handle)
	s.Equal([]byte{0x04}, ev.Data, "notification data MUST be copied")

	s.Require().NoError(s.link.Close())
	s.client.AssertCalled(s.T(), "Unsubscribe", s.chars.control, false)
	s.client.AssertCalled(s.T(), "CancelConnection")
	s.requireClosed()
}

func (s *LinkTestSuite) TestIndicateOnlyCharacteristic() {
	s.client.On("Subscribe", s.chars.recordCount, false, mock.Anything).Return(nil).Maybe()
	s.client.On("Subscribe", s.chars.recordCount, true, mock.Anything).Return(nil).Once()

	s.Require().NoError(s.link.EnableNotifications(2, s.handle(bledb.RecordCountUUID)))
	s.nextEvent()

	s.client.AssertCalled(s.T(), "Subscribe", s.chars.recordCount, true, mock.Anything)
	s.client.AssertNotCalled(s.T(), "Subscribe", s.chars.recordCount, false, mock.Anything)
}

func (s *LinkTestSuite) TestForeignHandleIsRejected() {
	err := s.link.Read(1, testutils.FakeHandle(device.NormalizeUUID(bledb.TimeUUID)))
	s.ErrorIs(err, device.ErrCharacteristicMissing)
}

func (s *LinkTestSuite) TestClosedLinkRejectsRequests() {
	s.Require().NoError(s.link.Close())
	s.requireClosed()

	err := s.link.Read(1, s.handle(bledb.TimeUUID))
	s.ErrorIs(err, device.ErrNotConnected)
	s.NoError(s.link.Close(), "a second Close MUST be a no-op")
}

func (s *LinkTestSuite) TestRemoteDisconnect() {
	client := mocks.NewMockDisconnectingClient()
	link := goble.NewLink(client, s.chars.profile, 8, testutils.NewTestLogger(s.T()))

	close(client.Lost)

	select {
	case ev := <-link.Events():
		s.Equal(device.Disconnected, ev.Kind)
		s.ErrorIs(ev.Err, device.ErrUnexpectedDisconnect)
	case <-time.After(time.Second):
		s.FailNow("no disconnect event")
	}

	select {
	case _, ok := <-link.Events():
		s.False(ok, "events MUST be closed after link loss")
	case <-time.After(time.Second):
		s.FailNow("events channel was not closed")
	}
	client.AssertNotCalled(s.T(), "CancelConnection")
}
