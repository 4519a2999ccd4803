package station

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func (s *Session) requireReady() error {
	if s.state != CharacteristicsReady || !s.registry.Ready() {
		return fmt.Errorf("%w (state: %s)", ErrNotReady, s.state)
	}
	return nil
}

// SetCurrentDateAndTime writes the current date and time to the station and commits
// them with the SET_DATE_AND_TIME control code. DateTimeSetComplete fires once the
// control write succeeds.
func (s *Session) SetCurrentDateAndTime() error {
	return s.do(func() error {
		if err := s.requireReady(); err != nil {
			return err
		}

		now := s.clock().In(s.location)
		date, err := EncodeDate(now)
		if err != nil {
			return err
		}

		s.logger.WithField("time", now.Format("2006-01-02 15:04:05 Mon")).Info("Setting station date and time")

		group := s.newGroup()
		s.queue.enqueue(
			writeOp(Date, date, SeqDateTime, group),
			writeOp(Time, EncodeTime(now), SeqDateTime, group),
			writeOp(Control, []byte{CmdSetDateAndTime}, SeqDateTime, group),
		)
		return nil
	})
}

func (s *Session) onDateTimeResult(op Operation, err error) {
	if err != nil {
		dropped := s.queue.cancelGroup(op.Group)
		s.logger.WithFields(logrus.Fields{
			"characteristic": op.Target.String(),
			"dropped":        dropped,
			"error":          err,
		}).Error("Setting date and time failed")
		s.emit(func(cb Callbacks) { cb.OperationFailed(op.Target, err) })
		return
	}
	if op.Target == Control {
		s.logger.Info("Station date and time set")
		s.emit(func(cb Callbacks) { cb.DateTimeSetComplete() })
	}
}

// RefreshRecordCount reads the number of stored records. RecordCountUpdated fires with the result.
func (s *Session) RefreshRecordCount() error {
	return s.do(func() error {
		if err := s.requireReady(); err != nil {
			return err
		}
		s.queue.enqueue(readOp(RecordCount, SeqCountRefresh, s.newGroup()))
		return nil
	})
}

func (s *Session) onCountRefreshResult(op Operation, data []byte, err error) {
	if err == nil {
		var n uint32
		if n, err = DecodeRecordCount(data); err == nil {
			s.setCount(n)
			return
		}
	}
	s.logger.WithError(err).Error("Reading record count failed")
	s.emit(func(cb Callbacks) { cb.OperationFailed(op.Target, err) })
}

// BeginBulkFetch reads every record stored on the station. Each record is reported
// through RecordFetched and FetchFinished fires at the end.
//
// When the last known record count is zero nothing is issued and FetchFinished(0)
// fires immediately. ErrFetchInProgress is returned while a fetch is running.
func (s *Session) BeginBulkFetch() error {
	return s.do(func() error {
		if err := s.requireReady(); err != nil {
			return err
		}
		if s.asm.running() {
			return ErrFetchInProgress
		}
		if s.countKnown && s.count == 0 {
			s.logger.Debug("No stored records, nothing to fetch")
			s.emit(func(cb Callbacks) { cb.FetchFinished(0) })
			return nil
		}

		s.asm.reset()
		s.asm.group = s.newGroup()
		s.asm.state = StateAwaitingCount
		s.queue.enqueue(readOp(RecordCount, SeqBulkFetch, s.asm.group))
		return nil
	})
}
