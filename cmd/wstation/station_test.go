//go:build test

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
	"github.com/srg/wstation/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type StationCommandsTestSuite struct {
	CommandTestSuite
}

func TestStationCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(StationCommandsTestSuite))
}

func sampleRecords() []station.WeatherRecord {
	return []station.WeatherRecord{
		{Year: 2024, Month: 3, Day: 14, Hour: 8, Temperature: 18.5, Pressure: 1013.25, Humidity: 45.5},
		{Year: 2024, Month: 3, Day: 14, Hour: 9, Minute: 15, Second: 30, Temperature: 21.75, Pressure: 1012.5, Humidity: 104.5},
	}
}

func (s *StationCommandsTestSuite) TestFetchTable() {
	// GOAL: fetch prints every stored record in order with a summary line
	//
	// TEST SCENARIO: two records, one with implausible humidity → table → both rows and "latest #1"

	s.Station = testutils.NewFakeStation(sampleRecords()...)

	out, err := s.ExecuteCommand("fetch", "--timezone", "UTC")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
   #  TIME                  TEMP (°C)  PRESSURE (hPa)  HUMIDITY (%)
-------------------------------------------------------------------
   0  2024-03-14 08:00:00       18.50         1013.25         45.50
   1  2024-03-14 09:15:30       21.75         1012.50        104.50

2 record(s), latest #1 at 2024-03-14 09:15:30
`)
}

func (s *StationCommandsTestSuite) TestFetchJSON() {
	s.Station = testutils.NewFakeStation(sampleRecords()...)

	out, err := s.ExecuteCommand("fetch", "--timezone", "UTC", "--format", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(out, `[
		{"index": 0, "time": "2024-03-14T08:00:00Z", "temperature": 18.5, "pressure": 1013.25, "humidity": 45.5, "in_range": true},
		{"index": 1, "time": "2024-03-14T09:15:30Z", "temperature": 21.75, "pressure": 1012.5, "humidity": 104.5, "in_range": false}
	]`)
	s.Less(strings.Index(out, `"index"`), strings.Index(out, `"time"`), "keys MUST keep their declared order")
}

func (s *StationCommandsTestSuite) TestFetchCSVLatest() {
	s.Station = testutils.NewFakeStation(sampleRecords()...)

	out, err := s.ExecuteCommand("fetch", "--timezone", "UTC", "--format", "csv", "--latest")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
index,time,temperature_c,pressure_hpa,humidity_pct
0,2024-03-14T09:15:30Z,21.75,1012.50,104.50
`)
}

func (s *StationCommandsTestSuite) TestFetchEmptyStation() {
	out, err := s.ExecuteCommand("fetch")
	s.Require().NoError(err)
	s.Equal("No records stored on the station\n", out)
}

func (s *StationCommandsTestSuite) TestFetchReadFailure() {
	s.Station = testutils.NewFakeStation(sampleRecords()...)
	s.Station.Fail(station.Pressure, errors.New("gatt: insufficient authentication"))

	_, err := s.ExecuteCommand("fetch")

	s.Require().Error(err)
	s.ErrorIs(err, device.ErrOperationFailed)
	s.Contains(err.Error(), "pressure")
}

func (s *StationCommandsTestSuite) TestCount() {
	s.Station = testutils.NewFakeStation(sampleRecords()...)

	out, err := s.ExecuteCommand("count")
	s.Require().NoError(err)
	s.Equal("Stored records: 2\n", out)

	resetFlags(rootCmd)
	out, err = s.ExecuteCommand("count", "-f", "json")
	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `{"count": 2}`)
}

func (s *StationCommandsTestSuite) TestSettime() {
	out, err := s.ExecuteCommand("settime", "--timezone", "UTC")
	s.Require().NoError(err)

	s.Equal("Station clock set to 2024-03-15 14:30:45 Fri\n", out)
	date, tm, committed := s.Station.ClockWrites()
	s.Equal([]byte{24, 3, 15, 5}, date)
	s.Equal([]byte{14, 30, 45}, tm)
	s.True(committed)
}

func (s *StationCommandsTestSuite) TestFlagsOverrideConfigFile() {
	path := filepath.Join(s.T().TempDir(), "wstation.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(`
device_name: Garden
output_format: csv
operation_timeout: 3s
`), 0o600))
	s.Station = testutils.NewFakeStation(sampleRecords()...)

	out, err := s.ExecuteCommand("count", "--config", path, "--address", "AA:BB:CC:DD:EE:FF", "--timeout", "1s")
	s.Require().NoError(err)

	s.Equal("count\n2\n", out, "the file's output format MUST apply")
	s.Require().NotNil(s.Config)
	s.Equal("Garden", s.Config.DeviceName)
	s.Equal("AA:BB:CC:DD:EE:FF", s.Config.DeviceAddress)
	s.Equal("1s", s.Config.OperationTimeout.String())

	opts := connectOptions(s.Config)
	s.Equal("AA:BB:CC:DD:EE:FF", opts.Address)
	s.Equal("Garden", opts.Scan.Name, "the station MUST be picked by its exact name")
	s.Empty(opts.Scan.NamePrefix)
	s.True(opts.Scan.StopOnFirst)
}

func (s *StationCommandsTestSuite) TestInvalidSettings() {
	_, err := s.ExecuteCommand("fetch", "--format", "xml")
	s.Require().Error(err)
	s.Contains(err.Error(), "output_format")

	resetFlags(rootCmd)
	_, err = s.ExecuteCommand("count", "--timezone", "Mars/Olympus")
	s.Require().Error(err)
	s.Contains(err.Error(), "timezone")
}

func (s *StationCommandsTestSuite) TestConnectFailures() {
	s.Run("station not found", func() {
		resetFlags(rootCmd)
		s.Station = testutils.NewFakeStation().WithConnectError(&device.NotFoundError{Resource: "device", UUIDs: []string{"name=WeatherStation"}})

		_, err := s.ExecuteCommand("count")

		s.Require().ErrorIs(err, device.ErrDeviceNotFound)
		s.Contains(FormatUserError(err), "--address")
	})

	s.Run("not a station", func() {
		resetFlags(rootCmd)
		s.Station = testutils.NewFakeStation().WithoutCharacteristic(station.Humidity)

		_, err := s.ExecuteCommand("fetch")

		s.Require().ErrorIs(err, device.ErrCharacteristicMissing)
		s.Contains(err.Error(), "humidity")
	})

	s.Run("bluetooth off", func() {
		resetFlags(rootCmd)
		s.Station = testutils.NewFakeStation().WithEnableError(errors.New("bluetooth is turned off"))

		_, err := s.ExecuteCommand("settime")

		s.Require().ErrorIs(err, device.ErrTransportUnavailable)
		s.Contains(FormatUserError(err), "Hint")
	})
}
