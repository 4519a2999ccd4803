package station

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
)

// ConnectionState tracks the link to the station.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
	ServicesDiscovered
	CharacteristicsReady
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case ServicesDiscovered:
		return "services_discovered"
	case CharacteristicsReady:
		return "characteristics_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OnConnected attaches the transport of a freshly established link.
func (s *Session) OnConnected(t device.Transport) {
	_ = s.do(func() error {
		if s.state != Disconnected {
			s.logger.WithField("state", s.state.String()).Warn("Connected while a previous link is still active, resetting")
			s.disconnect()
		}
		s.queue.transport = t
		s.state = Connected
		s.discoveryReported = false

		s.logger.Info("Weather station connected")
		s.emit(func(cb Callbacks) { cb.DeviceConnected() })
		return nil
	})
}

// OnServicesDiscovered records the outcome of service discovery.
func (s *Session) OnServicesDiscovered(ok bool) {
	_ = s.do(func() error {
		if s.state != Connected {
			s.logger.WithField("state", s.state.String()).Warn("Services discovered in unexpected state, ignoring")
			return nil
		}
		if !ok {
			s.logger.Error("Service discovery failed")
			s.reportDiscovery(false)
			return nil
		}
		s.state = ServicesDiscovered
		s.logger.Debug("Services discovered")
		return nil
	})
}

// OnCharacteristicsDiscovered validates and installs the characteristic handles,
// then subscribes to control and record-count notifications.
// A missing characteristic is returned as a *device.NotFoundError.
func (s *Session) OnCharacteristicsDiscovered(handles map[CharacteristicID]device.Handle) error {
	return s.do(func() error {
		if s.state != ServicesDiscovered && s.state != Connected {
			return fmt.Errorf("%w: characteristics discovered while %s", device.ErrNotConnected, s.state)
		}

		if err := s.registry.populate(handles); err != nil {
			s.logger.WithError(err).Error("Weather station profile is incomplete")
			s.reportDiscovery(false)
			return err
		}

		s.state = CharacteristicsReady
		s.logger.WithFields(s.registry.logFields()).Info("Weather station characteristics ready")

		group := s.newGroup()
		s.queue.enqueue(subscribeOp(Control, group), subscribeOp(RecordCount, group))

		s.reportDiscovery(true)
		return nil
	})
}

// ReportDiscoveryFailure signals a discovery failure that happened before or
// outside the session, such as no matching device during the scan.
func (s *Session) ReportDiscoveryFailure(err error) {
	_ = s.do(func() error {
		s.logger.WithError(err).Error("Weather station discovery failed")
		s.reportDiscovery(false)
		return nil
	})
}

// reportDiscovery fires DiscoveryFinished at most once per connection attempt.
func (s *Session) reportDiscovery(ok bool) {
	if s.state != Disconnected && s.discoveryReported {
		return
	}
	s.discoveryReported = true
	s.emit(func(cb Callbacks) { cb.DiscoveryFinished(ok) })
}

// OnDisconnected resets the session from any state.
func (s *Session) OnDisconnected() {
	_ = s.do(func() error {
		s.disconnect()
		return nil
	})
}

func (s *Session) disconnect() {
	wasConnected := s.state != Disconnected

	if s.asm.running() {
		s.logger.WithFields(logrus.Fields{
			"fetched":   s.asm.fetched,
			"remaining": s.asm.remaining,
			"error":     device.ErrUnexpectedDisconnect,
		}).Warn("Bulk fetch interrupted")
	}
	if pending := s.queue.len(); pending > 0 {
		s.logger.WithField("dropped", pending).Debug("Dropping queued operations")
	}

	s.queue.reset()
	s.registry.reset()
	s.asm.reset()
	s.count = 0
	s.countKnown = false
	s.state = Disconnected
	s.discoveryReported = false

	if wasConnected {
		s.logger.Info("Weather station disconnected")
		s.emit(func(cb Callbacks) { cb.DeviceDisconnected() })
	}
}
