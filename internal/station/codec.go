package station

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Control codes written to, and notified on, the control characteristic.
const (
	CmdSetDateAndTime         byte = 0x01
	CmdGetData                byte = 0x02
	CmdFetchNextRecord        byte = 0x03
	NotifyNextRecordAvailable byte = 0x04
)

const (
	dateLen       = 3 // weekday byte is optional when reading
	timeLen       = 3
	countLen      = 2
	fixedPointLen = 4
	yearBase      = 2000
)

// ErrMalformedPayload indicates a characteristic value of unexpected length or range.
var ErrMalformedPayload = errors.New("malformed payload")

func malformed(what string, data []byte) error {
	return fmt.Errorf("%w: %s: % x", ErrMalformedPayload, what, data)
}

// EncodeDate encodes t as [year-2000, month, day, ISO weekday (Mon=1..Sun=7)].
func EncodeDate(t time.Time) ([]byte, error) {
	year := t.Year() - yearBase
	if year < 0 || year > math.MaxUint8 {
		return nil, fmt.Errorf("year %d cannot be encoded", t.Year())
	}
	return []byte{byte(year), byte(t.Month()), byte(t.Day()), isoWeekday(t)}, nil
}

// DecodeDate decodes a date characteristic value. The weekday byte is not validated.
func DecodeDate(data []byte) (year, month, day int, err error) {
	if len(data) < dateLen {
		return 0, 0, 0, malformed("date", data)
	}
	year = yearBase + int(data[0])
	month = int(data[1])
	day = int(data[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, malformed("date", data)
	}
	return year, month, day, nil
}

// EncodeTime encodes t as [hour, minute, second].
func EncodeTime(t time.Time) []byte {
	return []byte{byte(t.Hour()), byte(t.Minute()), byte(t.Second())}
}

// DecodeTime decodes a time characteristic value.
func DecodeTime(data []byte) (hour, minute, second int, err error) {
	if len(data) < timeLen {
		return 0, 0, 0, malformed("time", data)
	}
	hour, minute, second = int(data[0]), int(data[1]), int(data[2])
	if hour > 23 || minute > 59 || second > 59 {
		return 0, 0, 0, malformed("time", data)
	}
	return hour, minute, second, nil
}

// EncodeRecordCount encodes n as a little-endian uint16.
func EncodeRecordCount(n uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, n)
}

// DecodeRecordCount decodes the little-endian uint16 record count.
func DecodeRecordCount(data []byte) (uint32, error) {
	if len(data) < countLen {
		return 0, malformed("record count", data)
	}
	return uint32(binary.LittleEndian.Uint16(data)), nil
}

// EncodeFixedPoint encodes v as a little-endian int32 holding v*100.
func EncodeFixedPoint(v float64) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(int32(math.Round(v*100))))
}

// DecodeFixedPoint decodes a little-endian int32 holding the value times 100.
func DecodeFixedPoint(data []byte) (float64, error) {
	if len(data) < fixedPointLen {
		return 0, malformed("fixed point", data)
	}
	raw := int32(binary.LittleEndian.Uint32(data))
	return float64(raw) / 100, nil
}

// isoWeekday returns 1 for Monday through 7 for Sunday
func isoWeekday(t time.Time) byte {
	wd := t.Weekday()
	if wd == time.Sunday {
		return 7
	}
	return byte(wd)
}
