package scanner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/testutils"
	"github.com/srg/wstation/scanner"
	suitelib "github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	suitelib.Suite

	logger           *logrus.Logger
	adv1, adv2, adv3 blelib.Advertisement
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.logger = testutils.NewTestLogger(suite.T())

	suite.adv1 = testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("WeatherStation").
		WithRSSI(-45).
		WithServices(bledb.WeatherServiceUUID).
		Build()

	suite.adv2 = testutils.NewAdvertisementBuilder().
		WithAddress("11:22:33:44:55:66").
		WithName("WeatherStation-Garden").
		WithRSSI(-67).
		WithServices(bledb.WeatherServiceUUID).
		Build()

	// Add a third device that won't match most test conditions
	suite.adv3 = testutils.NewAdvertisementBuilder().
		WithAddress("99:88:77:66:55:44").
		WithName("Heart Rate").
		WithRSSI(-80).
		WithServices("180D").
		Build()
}

func (suite *ScannerTestSuite) newScanner(ads ...blelib.Advertisement) (*scanner.Scanner, *testutils.ReplayRadio) {
	radio := testutils.NewReplayRadio(ads...)
	s, err := scanner.NewScanner(radio, suite.logger)
	suite.Require().NoError(err)
	return s, radio
}

func addresses(devs []device.DeviceInfo) []string {
	out := make([]string, len(devs))
	for i, d := range devs {
		out[i] = d.Address
	}
	return out
}

func (suite *ScannerTestSuite) TestNewScanner() {
	suite.Run("creates scanner with nil logger", func() {
		s, err := scanner.NewScanner(testutils.NewReplayRadio(), nil)

		suite.NoError(err)
		suite.NotNil(s)
	})

	suite.Run("rejects missing radio", func() {
		_, err := scanner.NewScanner(nil, suite.logger)

		suite.ErrorIs(err, device.ErrTransportUnavailable)
	})
}

func (suite *ScannerTestSuite) TestDefaultScanOptions() {
	opts := scanner.DefaultScanOptions()

	suite.NotNil(opts)
	suite.Equal(10*time.Second, opts.Duration)
	suite.True(opts.DuplicateFilter)
	suite.False(opts.StopOnFirst)
	suite.Nil(opts.ServiceUUIDs)
	suite.Nil(opts.AllowList)
	suite.Nil(opts.BlockList)
}

func (suite *ScannerTestSuite) TestScannerFiltering() {
	tests := []struct {
		name     string
		opts     scanner.ScanOptions
		expected []string
	}{
		{
			name:     "includes all devices with no filters",
			opts:     scanner.ScanOptions{},
			expected: []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66", "99:88:77:66:55:44"},
		},
		{
			name:     "excludes device on block list",
			opts:     scanner.ScanOptions{BlockList: []string{"aa:bb:cc:dd:ee:ff"}},
			expected: []string{"11:22:33:44:55:66", "99:88:77:66:55:44"},
		},
		{
			name:     "includes only allow list",
			opts:     scanner.ScanOptions{AllowList: []string{"99:88:77:66:55:44"}},
			expected: []string{"99:88:77:66:55:44"},
		},
		{
			name:     "filters by station service",
			opts:     scanner.ScanOptions{ServiceUUIDs: []string{bledb.WeatherServiceUUID}},
			expected: []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"},
		},
		{
			name:     "filters by name prefix",
			opts:     scanner.ScanOptions{NamePrefix: "WeatherStation-"},
			expected: []string{"11:22:33:44:55:66"},
		},
		{
			name:     "filters by exact name",
			opts:     scanner.ScanOptions{Name: "WeatherStation"},
			expected: []string{"AA:BB:CC:DD:EE:FF"},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			s, _ := suite.newScanner(suite.adv1, suite.adv2, suite.adv3)
			opts := tt.opts
			opts.Duration = 50 * time.Millisecond

			devices, err := s.Scan(context.Background(), &opts, nil)

			suite.Require().NoError(err)
			suite.Equal(tt.expected, addresses(scanner.Sorted(devices)), "results MUST be sorted strongest signal first")
		})
	}
}

func (suite *ScannerTestSuite) TestScanMergesRepeatedAdvertisements() {
	update := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithRSSI(-40).
		Build()
	s, radio := suite.newScanner(suite.adv1, update)

	devices, err := s.Scan(context.Background(), &scanner.ScanOptions{Duration: 50 * time.Millisecond, DuplicateFilter: true}, nil)
	suite.Require().NoError(err)

	suite.Require().Len(devices, 1)
	d := devices["AA:BB:CC:DD:EE:FF"]
	suite.Equal(-40, d.RSSI, "the latest RSSI MUST win")
	suite.Equal("WeatherStation", d.Name, "a nameless update MUST keep the known name")
	suite.True(d.Advertises(bledb.WeatherServiceUUID))
	suite.Equal([]bool{false}, radio.AllowDupCalls(), "duplicate filtering MUST disable duplicate reports")

	var types []scanner.DeviceEventType
	for len(types) < 2 {
		select {
		case ev := <-s.Events():
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			suite.FailNow("missing scanner events", "got %v", types)
		}
	}
	suite.Equal([]scanner.DeviceEventType{scanner.EventNew, scanner.EventUpdated}, types)
}

func (suite *ScannerTestSuite) TestFindStopsOnFirstMatch() {
	s, _ := suite.newScanner(suite.adv3, suite.adv2, suite.adv1)

	var phases []string
	start := time.Now()
	found, err := s.Find(context.Background(), &scanner.ScanOptions{
		Duration:     5 * time.Second,
		ServiceUUIDs: []string{bledb.WeatherServiceUUID},
	}, func(phase string) { phases = append(phases, phase) })

	suite.Require().NoError(err)
	suite.Equal("11:22:33:44:55:66", found.Address)
	suite.Less(time.Since(start), 2*time.Second, "Find MUST not wait for the full scan window")
	suite.Equal(device.PhaseScanning, phases[0])
}

func (suite *ScannerTestSuite) TestFindReportsNotFound() {
	s, _ := suite.newScanner(suite.adv3)

	_, err := s.Find(context.Background(), &scanner.ScanOptions{
		Duration: 50 * time.Millisecond,
		Name:     "WeatherStation",
	}, nil)

	suite.ErrorIs(err, device.ErrDeviceNotFound)
	suite.Contains(err.Error(), "name=WeatherStation")
}

func (suite *ScannerTestSuite) TestScanErrors() {
	suite.Run("radio failure is returned", func() {
		radio := testutils.NewReplayRadio().WithScanError(errors.New("bluetooth is turned off"))
		s, err := scanner.NewScanner(radio, suite.logger)
		suite.Require().NoError(err)

		_, err = s.Scan(context.Background(), nil, nil)
		suite.ErrorIs(err, device.ErrTransportUnavailable)
	})

	suite.Run("cancelled scan returns partial results", func() {
		s, _ := suite.newScanner(suite.adv1)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		devices, err := s.Scan(ctx, &scanner.ScanOptions{Duration: 5 * time.Second}, nil)
		suite.ErrorIs(err, context.Canceled)
		suite.Len(devices, 1)
	})
}
