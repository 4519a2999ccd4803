package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/groutine"
)

// DefaultEventBuffer is the default size of a link's event channel
const DefaultEventBuffer = 64

// bleHandle identifies one discovered characteristic
type bleHandle struct {
	char *ble.Characteristic
	uuid string
}

func (h *bleHandle) UUID() string { return h.uuid }

// Link is a live go-ble connection exposed as a device.Link.
//
// Every request runs on its own goroutine and reports its completion on Events;
// callers are expected to keep at most one request in flight.
type Link struct {
	client  Client
	logger  *logrus.Logger
	handles map[string]device.Handle

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	events chan device.Event
	closed bool

	subMu      sync.Mutex
	subscribed map[*ble.Characteristic]bool // value is the indicate flag

	closeOnce sync.Once
	closeErr  error
}

// NewLink wraps a connected client and its discovered profile.
func NewLink(client Client, profile *ble.Profile, buffer int, logger *logrus.Logger) *Link {
	if logger == nil {
		logger = logrus.New()
	}
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Link{
		client:     client,
		logger:     logger,
		handles:    make(map[string]device.Handle),
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan device.Event, buffer),
		subscribed: make(map[*ble.Characteristic]bool),
	}

	if profile != nil {
		for _, svc := range profile.Services {
			for _, c := range svc.Characteristics {
				uuid := device.NormalizeUUID(c.UUID.String())
				l.handles[uuid] = &bleHandle{char: c, uuid: uuid}
			}
		}
	}

	// Monitor go-ble client Disconnected() channel where the platform provides one
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(ctx, "ble-link-monitor", func(ctx context.Context) {
			select {
			case <-dc.Disconnected():
				l.logger.WithField("goroutine", groutine.Name(ctx)).Warn("Peripheral disconnected")
				l.post(device.Event{Kind: device.Disconnected, Err: device.ErrUnexpectedDisconnect})
				l.shutdown(false)
			case <-ctx.Done():
			}
		})
	} else {
		l.logger.Debug("Client does not support Disconnected() channel")
	}

	l.logger.WithField("characteristics", len(l.handles)).Debug("Link established")
	return l
}

// Characteristics implements device.Link.
func (l *Link) Characteristics() map[string]device.Handle {
	out := make(map[string]device.Handle, len(l.handles))
	for k, v := range l.handles {
		out[k] = v
	}
	return out
}

// Events implements device.Link.
func (l *Link) Events() <-chan device.Event {
	return l.events
}

// Read implements device.Transport.
func (l *Link) Read(seq uint64, h device.Handle) error {
	c, err := l.characteristic(h)
	if err != nil {
		return err
	}
	return l.run("ble-read", func() {
		data, err := l.client.ReadCharacteristic(c)
		l.post(device.Event{Kind: device.ReadDone, Handle: h, Seq: seq, Data: data, Err: NormalizeError(err)})
	})
}

// Write implements device.Transport. Writes always request a response.
func (l *Link) Write(seq uint64, h device.Handle, data []byte) error {
	c, err := l.characteristic(h)
	if err != nil {
		return err
	}
	payload := append([]byte(nil), data...)
	return l.run("ble-write", func() {
		err := l.client.WriteCharacteristic(c, payload, false)
		l.post(device.Event{Kind: device.WriteDone, Handle: h, Seq: seq, Err: NormalizeError(err)})
	})
}

// EnableNotifications implements device.Transport. Indications are used when the
// characteristic cannot notify.
func (l *Link) EnableNotifications(seq uint64, h device.Handle) error {
	c, err := l.characteristic(h)
	if err != nil {
		return err
	}
	ind := c.Property&ble.CharNotify == 0 && c.Property&ble.CharIndicate != 0

	return l.run("ble-subscribe", func() {
		err := l.client.Subscribe(c, ind, func(data []byte) {
			l.post(device.Event{Kind: device.Notification, Handle: h, Data: append([]byte(nil), data...)})
		})
		if err == nil {
			l.subMu.Lock()
			l.subscribed[c] = ind
			l.subMu.Unlock()
		}
		l.post(device.Event{Kind: device.DescriptorWriteDone, Handle: h, Seq: seq, Err: NormalizeError(err)})
	})
}

// Close unsubscribes, cancels the connection and closes Events.
func (l *Link) Close() error {
	return l.shutdown(true)
}

func (l *Link) shutdown(cancelConnection bool) error {
	l.closeOnce.Do(func() {
		l.logger.Debug("Closing link...")

		if cancelConnection {
			l.unsubscribeAll()
			if err := l.client.CancelConnection(); err != nil {
				l.closeErr = NormalizeError(err)
				l.logger.WithError(err).Warn("BLE device disconnected with errors")
			}
		}

		// unblock pending posts before taking the write lock
		l.cancel()

		l.mu.Lock()
		l.closed = true
		close(l.events)
		l.mu.Unlock()

		l.logger.Info("BLE link closed")
	})
	return l.closeErr
}

func (l *Link) unsubscribeAll() {
	l.subMu.Lock()
	subs := l.subscribed
	l.subscribed = make(map[*ble.Characteristic]bool)
	l.subMu.Unlock()

	for c, ind := range subs {
		if err := l.client.Unsubscribe(c, ind); err != nil {
			l.logger.WithFields(logrus.Fields{
				"char_uuid": c.UUID.String(),
				"error":     err,
			}).Warn("Failed to unsubscribe from characteristic notifications")
		}
	}
}

func (l *Link) characteristic(h device.Handle) (*ble.Characteristic, error) {
	bh, ok := h.(*bleHandle)
	if !ok || bh.char == nil {
		return nil, fmt.Errorf("%w: foreign handle %v", device.ErrCharacteristicMissing, h)
	}
	return bh.char, nil
}

// run starts fn unless the link is closed.
func (l *Link) run(name string, fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return fmt.Errorf("%w: link closed", device.ErrNotConnected)
	}
	groutine.Go(l.ctx, name, func(context.Context) { fn() })
	return nil
}

// post delivers ev unless the link is closing.
func (l *Link) post(ev device.Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.events <- ev:
	case <-l.ctx.Done():
		l.logger.WithField("event", ev.Kind.String()).Debug("Link closing, dropping event")
	}
}
