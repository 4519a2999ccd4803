package goble_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
	goble "github.com/srg/wstation/internal/device/go-ble"
	"github.com/srg/wstation/internal/testutils"
	"github.com/srg/wstation/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const stationAddress = "AA:BB:CC:DD:EE:FF"

type ConnectorTestSuite struct {
	suite.Suite

	logger         *logrus.Logger
	adapter        *mocks.MockAdapter
	client         *mocks.MockClient
	phases         []string
	origFactory    func() (goble.Adapter, error)
	factoryErr     error
	factoryInvoked int
}

func TestConnectorTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectorTestSuite))
}

func (s *ConnectorTestSuite) SetupTest() {
	s.logger = testutils.NewTestLogger(s.T())
	s.adapter = &mocks.MockAdapter{}
	s.client = &mocks.MockClient{}
	s.client.On("Unsubscribe", mock.Anything, mock.Anything).Return(nil).Maybe()
	s.client.On("CancelConnection").Return(nil).Maybe()
	s.phases = nil
	s.factoryErr = nil
	s.factoryInvoked = 0

	s.origFactory = goble.AdapterFactory
	goble.AdapterFactory = func() (goble.Adapter, error) {
		s.factoryInvoked++
		if s.factoryErr != nil {
			return nil, s.factoryErr
		}
		return s.adapter, nil
	}
}

func (s *ConnectorTestSuite) TearDownTest() {
	goble.AdapterFactory = s.origFactory
}

func (s *ConnectorTestSuite) progress(phase string) {
	s.phases = append(s.phases, phase)
}

func (s *ConnectorTestSuite) newConnector(opts goble.ConnectOptions) *goble.Connector {
	return goble.NewConnector(opts, s.logger)
}

func addressIs(want string) interface{} {
	return mock.MatchedBy(func(a ble.Addr) bool { return strings.EqualFold(a.String(), want) })
}

func (s *ConnectorTestSuite) TestDefaultConnectOptions() {
	opts := goble.DefaultConnectOptions()

	s.Equal(20*time.Second, opts.ConnectTimeout)
	s.Equal(64, opts.EventBuffer)
	s.Equal(10*time.Second, opts.Scan.Duration)
	s.True(opts.Scan.DuplicateFilter)
}

func (s *ConnectorTestSuite) TestEnableFailureIsTransportUnavailable() {
	s.factoryErr = errors.New("can't init hci: no devices available")
	c := s.newConnector(goble.DefaultConnectOptions())

	err := c.Enable()
	s.ErrorIs(err, device.ErrTransportUnavailable)
	s.Contains(err.Error(), "hci")
	s.Nil(c.Adapter())
}

func (s *ConnectorTestSuite) TestEnableIsIdempotent() {
	c := s.newConnector(goble.DefaultConnectOptions())

	s.Require().NoError(c.Enable())
	s.Require().NoError(c.Enable())
	s.Equal(1, s.factoryInvoked)
}

func (s *ConnectorTestSuite) TestConnectRequiresEnable() {
	_, err := s.newConnector(goble.DefaultConnectOptions()).Connect(context.Background(), nil)
	s.ErrorIs(err, device.ErrNotInitialized)
}

func (s *ConnectorTestSuite) TestConnectByAddress() {
	opts := goble.DefaultConnectOptions()
	opts.Address = stationAddress
	profile := newStationProfile()

	s.adapter.On("Dial", mock.Anything, addressIs(stationAddress)).Return(s.client, nil).Once()
	s.client.On("DiscoverProfile", true).Return(profile.profile, nil).Once()

	c := s.newConnector(opts)
	s.Require().NoError(c.Enable())
	link, err := c.Connect(context.Background(), s.progress)
	s.Require().NoError(err)
	defer link.Close()

	s.Equal([]string{
		device.PhaseConnecting,
		device.PhaseConnected,
		device.PhaseDiscovering,
		device.PhaseServicesReady,
	}, s.phases, "a configured address MUST skip the scan")
	s.Contains(link.Characteristics(), device.NormalizeUUID(bledb.ControlUUID))
	s.adapter.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ConnectorTestSuite) TestConnectScansForStation() {
	opts := goble.DefaultConnectOptions()
	opts.Scan.ServiceUUIDs = []string{bledb.WeatherServiceUUID}
	opts.Scan.Duration = 5 * time.Second

	other := testutils.NewAdvertisementBuilder().WithAddress("11:11:11:11:11:11").WithServices("180D").Build()
	station := testutils.NewAdvertisementBuilder().
		WithAddress(stationAddress).
		WithName(bledb.DefaultDeviceName).
		WithServices(bledb.WeatherServiceUUID).
		Build()

	s.adapter.On("Scan", mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			h := args.Get(2).(ble.AdvHandler)
			h(other)
			h(station)
			<-ctx.Done()
		}).
		Return(context.Canceled).Once()
	s.adapter.On("Dial", mock.Anything, addressIs(stationAddress)).Return(s.client, nil).Once()
	s.client.On("DiscoverProfile", true).Return(newStationProfile().profile, nil).Once()

	c := s.newConnector(opts)
	s.Require().NoError(c.Enable())
	link, err := c.Connect(context.Background(), s.progress)
	s.Require().NoError(err)
	defer link.Close()

	s.Equal(device.PhaseScanning, s.phases[0])
	s.Contains(s.phases, device.PhaseServicesReady)
	s.adapter.AssertExpectations(s.T())
}

func (s *ConnectorTestSuite) TestConnectStationNotFound() {
	opts := goble.DefaultConnectOptions()
	opts.Scan.Name = bledb.DefaultDeviceName
	opts.Scan.Duration = 20 * time.Millisecond

	s.adapter.On("Scan", mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(context.DeadlineExceeded).Once()

	c := s.newConnector(opts)
	s.Require().NoError(c.Enable())
	_, err := c.Connect(context.Background(), s.progress)

	s.ErrorIs(err, device.ErrDeviceNotFound)
	s.adapter.AssertNotCalled(s.T(), "Dial", mock.Anything, mock.Anything)
}

func (s *ConnectorTestSuite) TestDialTimeout() {
	opts := goble.DefaultConnectOptions()
	opts.Address = stationAddress
	opts.ConnectTimeout = 10 * time.Millisecond

	s.adapter.On("Dial", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, context.DeadlineExceeded).Once()

	c := s.newConnector(opts)
	s.Require().NoError(c.Enable())
	_, err := c.Connect(context.Background(), s.progress)

	s.ErrorIs(err, device.ErrTimeout)
	s.Contains(err.Error(), stationAddress)
	s.NotContains(s.phases, device.PhaseConnected)
}

func (s *ConnectorTestSuite) TestDiscoveryFailureCancelsConnection() {
	opts := goble.DefaultConnectOptions()
	opts.Address = stationAddress

	s.adapter.On("Dial", mock.Anything, mock.Anything).Return(s.client, nil).Once()
	s.client.On("DiscoverProfile", true).Return(nil, errors.New("att: request timed out")).Once()

	c := s.newConnector(opts)
	s.Require().NoError(c.Enable())
	_, err := c.Connect(context.Background(), s.progress)

	s.Require().Error(err)
	s.Contains(err.Error(), "failed to discover profile")
	s.client.AssertCalled(s.T(), "CancelConnection")
	s.Equal(device.PhaseDiscovering, s.phases[len(s.phases)-1])
}

func (s *ConnectorTestSuite) TestCloseStopsAdapter() {
	s.adapter.On("Stop").Return(nil).Once()

	c := s.newConnector(goble.DefaultConnectOptions())
	s.Require().NoError(c.Enable())

	s.NoError(c.Close())
	s.NoError(c.Close())
	s.adapter.AssertNumberOfCalls(s.T(), "Stop", 1)
}
