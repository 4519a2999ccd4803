package station

import (
	"testing"
	"time"

	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uuidHandle string

func (h uuidHandle) UUID() string { return string(h) }

func TestRecordLog(t *testing.T) {
	var log RecordLog

	_, ok := log.Latest()
	assert.False(t, ok)
	assert.Equal(t, -1, log.LatestIndex())
	assert.Empty(t, log.All())

	first := WeatherRecord{Year: 2024, Month: 1, Day: 2, Temperature: 10}
	second := WeatherRecord{Year: 2024, Month: 1, Day: 3, Temperature: 11}
	log.append(first)
	log.append(second)

	assert.Equal(t, 2, log.Len())
	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Equal(t, second, latest)
	assert.Equal(t, 1, log.LatestIndex())

	all := log.All()
	all[0].Temperature = 99
	assert.Equal(t, 10.0, log.All()[0].Temperature, "All MUST return a copy")
}

func TestWeatherRecordTime(t *testing.T) {
	rec := WeatherRecord{Year: 2024, Month: 3, Day: 15, Hour: 14, Minute: 30, Second: 45}

	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 45, 0, time.UTC), rec.Time(nil))

	loc := time.FixedZone("CET", 3600)
	got := rec.Time(loc)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 13, got.UTC().Hour())
}

func TestWeatherRecordRanges(t *testing.T) {
	tests := []struct {
		name                string
		rec                 WeatherRecord
		temp, press, humid bool
	}{
		{"typical", WeatherRecord{Temperature: 21.5, Pressure: 1013.25, Humidity: 45}, true, true, true},
		{"bounds inclusive", WeatherRecord{Temperature: 50, Pressure: 900, Humidity: 100}, true, true, true},
		{"frost", WeatherRecord{Temperature: -5, Pressure: 1013, Humidity: 45}, false, true, true},
		{"storm", WeatherRecord{Temperature: 20, Pressure: 870.5, Humidity: 45}, true, false, true},
		{"sensor glitch", WeatherRecord{Temperature: 20, Pressure: 1013, Humidity: 100.5}, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.temp, tt.rec.TemperatureInRange())
			assert.Equal(t, tt.press, tt.rec.PressureInRange())
			assert.Equal(t, tt.humid, tt.rec.HumidityInRange())
		})
	}
}

func TestProfileResolve(t *testing.T) {
	profile := DefaultProfile()

	discovered := map[string]device.Handle{}
	for _, uuid := range []string{bledb.ControlUUID, bledb.DateUUID, "2a19"} {
		n := device.NormalizeUUID(uuid)
		discovered[n] = uuidHandle(n)
	}

	handles := profile.Resolve(discovered)
	assert.Len(t, handles, 2, "unrelated characteristics MUST be ignored")
	assert.Contains(t, handles, Control)
	assert.Contains(t, handles, Date)
	assert.NotContains(t, handles, Humidity)
}

func TestRegistryPopulate(t *testing.T) {
	profile := DefaultProfile()
	handles := map[CharacteristicID]device.Handle{}
	for id, uuid := range profile.Characteristics {
		handles[id] = uuidHandle(uuid)
	}

	r := newRegistry(profile.Service)
	require.NoError(t, r.populate(handles))
	assert.True(t, r.Ready())

	h, err := r.Lookup(Pressure)
	require.NoError(t, err)
	id, ok := r.Resolve(h)
	assert.True(t, ok)
	assert.Equal(t, Pressure, id)

	// dashed and undashed forms resolve to the same characteristic
	id, ok = r.Resolve(uuidHandle(device.NormalizeUUID(bledb.PressureUUID)))
	assert.True(t, ok)
	assert.Equal(t, Pressure, id)

	_, ok = r.Resolve(uuidHandle("2a19"))
	assert.False(t, ok)

	r.reset()
	assert.False(t, r.Ready())
	_, err = r.Lookup(Pressure)
	assert.ErrorIs(t, err, device.ErrCharacteristicMissing)
}

func TestRegistryPopulateReportsAllMissing(t *testing.T) {
	r := newRegistry(bledb.WeatherServiceUUID)
	err := r.populate(map[CharacteristicID]device.Handle{Control: uuidHandle(bledb.ControlUUID)})

	var nf *device.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, bledb.WeatherServiceUUID, nf.UUIDs[0])
	assert.Equal(t, []string{"date", "humidity", "pressure", "record-count", "temperature", "time"}, nf.UUIDs[1:])
	assert.False(t, r.Ready(), "a failed populate MUST leave the registry empty")
}
