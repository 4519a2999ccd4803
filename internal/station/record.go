package station

import (
	"time"
)

// Plausibility ranges of the station sensors. Values outside are still recorded.
const (
	MinTemperature = 0.0
	MaxTemperature = 50.0
	MinPressure    = 900.0
	MaxPressure    = 1100.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// WeatherRecord is one stored measurement read back from the station.
type WeatherRecord struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int

	Temperature float64 // °C
	Pressure    float64 // hPa
	Humidity    float64 // %RH
}

// Time returns the record timestamp in loc (UTC when nil).
func (r WeatherRecord) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, r.Minute, r.Second, 0, loc)
}

// TemperatureInRange reports whether the temperature is within the sensor's plausible range.
func (r WeatherRecord) TemperatureInRange() bool {
	return r.Temperature >= MinTemperature && r.Temperature <= MaxTemperature
}

func (r WeatherRecord) PressureInRange() bool {
	return r.Pressure >= MinPressure && r.Pressure <= MaxPressure
}

func (r WeatherRecord) HumidityInRange() bool {
	return r.Humidity >= MinHumidity && r.Humidity <= MaxHumidity
}

// RecordLog is the ordered, append-only list of fetched records.
// It is owned by a Session and guarded by the session lock.
type RecordLog struct {
	records []WeatherRecord
}

func (l *RecordLog) append(r WeatherRecord) {
	l.records = append(l.records, r)
}

// Len returns the number of records.
func (l *RecordLog) Len() int {
	return len(l.records)
}

// All returns a copy of the records in fetch order.
func (l *RecordLog) All() []WeatherRecord {
	return append([]WeatherRecord(nil), l.records...)
}

// Latest returns the most recently fetched record.
func (l *RecordLog) Latest() (WeatherRecord, bool) {
	if len(l.records) == 0 {
		return WeatherRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// LatestIndex returns the index of the latest record, or -1 when the log is empty.
func (l *RecordLog) LatestIndex() int {
	return len(l.records) - 1
}
