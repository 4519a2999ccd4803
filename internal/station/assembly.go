package station

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// AssemblyState is the state of the record assembly state machine.
type AssemblyState int

const (
	StateIdle AssemblyState = iota
	StateAwaitingCount
	StateAwaitingTime
	StateAwaitingDate
	StateAwaitingTemperature
	StateAwaitingPressure
	StateAwaitingHumidity
	StateAwaitingNextRecord
	StateFinished
)

func (s AssemblyState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCount:
		return "awaiting_count"
	case StateAwaitingTime:
		return "awaiting_time"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingTemperature:
		return "awaiting_temperature"
	case StateAwaitingPressure:
		return "awaiting_pressure"
	case StateAwaitingHumidity:
		return "awaiting_humidity"
	case StateAwaitingNextRecord:
		return "awaiting_next_record"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("assembly(%d)", int(s))
	}
}

type recordField struct {
	id     CharacteristicID
	state  AssemblyState
	decode func(data []byte, rec *WeatherRecord) error
}

// recordFields is the order in which one record is read; the last entry completes it.
var recordFields = []recordField{
	{id: Time, state: StateAwaitingTime, decode: func(data []byte, rec *WeatherRecord) (err error) {
		rec.Hour, rec.Minute, rec.Second, err = DecodeTime(data)
		return err
	}},
	{id: Date, state: StateAwaitingDate, decode: func(data []byte, rec *WeatherRecord) (err error) {
		rec.Year, rec.Month, rec.Day, err = DecodeDate(data)
		return err
	}},
	{id: Temperature, state: StateAwaitingTemperature, decode: func(data []byte, rec *WeatherRecord) (err error) {
		rec.Temperature, err = DecodeFixedPoint(data)
		return err
	}},
	{id: Pressure, state: StateAwaitingPressure, decode: func(data []byte, rec *WeatherRecord) (err error) {
		rec.Pressure, err = DecodeFixedPoint(data)
		return err
	}},
	{id: Humidity, state: StateAwaitingHumidity, decode: func(data []byte, rec *WeatherRecord) (err error) {
		rec.Humidity, err = DecodeFixedPoint(data)
		return err
	}},
}

type assembly struct {
	state     AssemblyState
	field     int
	pending   WeatherRecord
	remaining uint32
	fetched   int
	group     uint64
}

func (a *assembly) running() bool {
	return a.state != StateIdle && a.state != StateFinished
}

func (a *assembly) reset() {
	*a = assembly{}
}

// startFetch asks the station to rewind its cursor and reads the first record.
func (s *Session) startFetch(count uint32) {
	group := s.asm.group
	s.asm.remaining = count
	s.asm.fetched = 0
	s.asm.field = 0
	s.asm.state = recordFields[0].state

	s.logger.WithField("count", count).Info("Fetching stored records")

	s.queue.enqueue(
		writeOp(Control, []byte{CmdGetData}, SeqBulkFetch, group),
		readOp(recordFields[0].id, SeqBulkFetch, group),
	)
}

// enterField moves to field i and reads its characteristic.
func (s *Session) enterField(i int) {
	f := recordFields[i]
	s.asm.field = i
	s.asm.state = f.state
	s.queue.enqueue(readOp(f.id, SeqBulkFetch, s.asm.group))
}

func (s *Session) onFetchResult(op Operation, data []byte, err error) {
	if op.Group != s.asm.group || !s.asm.running() {
		s.logger.WithField("op", op.String()).Debug("Result for an abandoned fetch, ignoring")
		return
	}
	if err != nil {
		s.abortFetch(op.Target, err)
		return
	}

	if op.Kind == OpWrite {
		s.logger.WithField("op", op.String()).Debug("Cursor command accepted")
		return
	}

	if s.asm.state == StateAwaitingCount {
		s.onFetchCount(op, data)
		return
	}

	f := recordFields[s.asm.field]
	if op.Target != f.id || s.asm.state != f.state {
		s.logger.WithFields(logrus.Fields{
			"op":    op.String(),
			"state": s.asm.state.String(),
		}).Error("Read result does not match the assembly state, ignoring")
		return
	}
	if err := f.decode(data, &s.asm.pending); err != nil {
		s.abortFetch(op.Target, err)
		return
	}

	if s.asm.field+1 < len(recordFields) {
		s.enterField(s.asm.field + 1)
		return
	}
	s.finishRecord()
}

func (s *Session) onFetchCount(op Operation, data []byte) {
	n, err := DecodeRecordCount(data)
	if err != nil {
		s.abortFetch(op.Target, err)
		return
	}
	s.setCount(n)

	if n == 0 {
		s.asm.state = StateFinished
		s.logger.Info("No stored records to fetch")
		s.emit(func(cb Callbacks) { cb.FetchFinished(0) })
		return
	}
	s.startFetch(n)
}

func (s *Session) finishRecord() {
	rec := s.asm.pending
	s.asm.pending = WeatherRecord{}
	s.records.append(rec)
	s.asm.fetched++
	if s.asm.remaining > 0 {
		s.asm.remaining--
	}

	s.logger.WithFields(logrus.Fields{
		"index":       s.records.LatestIndex(),
		"remaining":   s.asm.remaining,
		"temperature": rec.Temperature,
		"pressure":    rec.Pressure,
		"humidity":    rec.Humidity,
	}).Debug("Record fetched")
	s.emit(func(cb Callbacks) { cb.RecordFetched(rec) })

	if s.asm.remaining == 0 {
		total := s.asm.fetched
		s.asm.state = StateFinished
		s.count = 0
		s.countKnown = true
		s.logger.WithField("fetched", total).Info("Bulk fetch finished")
		s.emit(func(cb Callbacks) { cb.FetchFinished(total) })
		return
	}

	s.asm.state = StateAwaitingNextRecord
	s.queue.enqueue(writeOp(Control, []byte{CmdFetchNextRecord}, SeqBulkFetch, s.asm.group))
}

func (s *Session) onControlNotification(data []byte) {
	if len(data) == 0 {
		s.logger.Warn("Empty control notification, ignoring")
		return
	}

	switch data[0] {
	case NotifyNextRecordAvailable:
		if s.asm.state != StateAwaitingNextRecord {
			s.logger.WithField("state", s.asm.state.String()).Debug("Next record notification outside a fetch, ignoring")
			return
		}
		s.enterField(0)
	default:
		s.logger.WithField("code", fmt.Sprintf("0x%02x", data[0])).Debug("Unhandled control notification")
	}
}

// abortFetch cancels the remaining fetch operations and discards the partial record.
func (s *Session) abortFetch(id CharacteristicID, err error) {
	dropped := s.queue.cancelGroup(s.asm.group)
	s.logger.WithFields(logrus.Fields{
		"characteristic": id.String(),
		"state":          s.asm.state.String(),
		"fetched":        s.asm.fetched,
		"dropped":        dropped,
		"error":          err,
	}).Error("Bulk fetch aborted")

	s.asm.reset()
	s.emit(func(cb Callbacks) { cb.OperationFailed(id, err) })
}
