package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/groutine"
)

// closeTimeout bounds how long Close waits for the event loop to drain
const closeTimeout = 5 * time.Second

// Client binds a device.Connector to a Session and owns the resulting link.
type Client struct {
	connector device.Connector
	session   *Session
	profile   Profile
	logger    *logrus.Logger

	mu          sync.Mutex
	initialized bool
	link        device.Link
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewClient creates a client for the given connector and session.
func NewClient(connector device.Connector, session *Session, profile Profile, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		connector: connector,
		session:   session,
		profile:   profile,
		logger:    logger,
	}
}

// Session returns the protocol session driven by this client.
func (c *Client) Session() *Session {
	return c.session
}

// Initialize prepares the local radio.
func (c *Client) Initialize() error {
	if err := c.connector.Enable(); err != nil {
		if !errors.Is(err, device.ErrTransportUnavailable) {
			err = fmt.Errorf("%w: %w", device.ErrTransportUnavailable, err)
		}
		c.logger.WithError(err).Error("Bluetooth transport unavailable")
		return err
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// BeginConnection finds and connects to the station, installs its characteristics in
// the session and starts delivering transport events. It returns once the session is
// ready or the attempt failed; failures are also reported through DiscoveryFinished(false).
func (c *Client) BeginConnection(ctx context.Context, progress device.ProgressCallback) error {
	c.mu.Lock()
	switch {
	case !c.initialized:
		c.mu.Unlock()
		return device.ErrNotInitialized
	case c.link != nil:
		c.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	c.mu.Unlock()

	if progress == nil {
		progress = func(string) {}
	}

	link, err := c.connector.Connect(ctx, progress)
	if err != nil {
		progress(device.PhaseFailed)
		c.session.ReportDiscoveryFailure(err)
		return err
	}

	c.session.OnConnected(link)
	c.session.OnServicesDiscovered(true)
	if err := c.session.OnCharacteristicsDiscovered(c.profile.Resolve(link.Characteristics())); err != nil {
		progress(device.PhaseFailed)
		if closeErr := link.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close incomplete link")
		}
		c.session.OnDisconnected()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.link = link
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	groutine.Go(loopCtx, "station-events", func(ctx context.Context) {
		defer close(done)
		defer c.release(link)
		if err := c.session.Run(ctx, link.Events()); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.WithField("goroutine", groutine.Name(ctx)).WithError(err).Warn("Event loop stopped")
		}
	})

	progress(device.PhaseReady)
	return nil
}

// release forgets link once its event loop stopped, so a new connection can be made.
func (c *Client) release(link device.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link != link {
		return
	}
	c.cancel()
	c.link, c.cancel = nil, nil
}

// Done is closed when the current link's event loop stops, for example on link loss.
// It returns nil when not connected.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close disconnects from the station. It is safe to call when not connected.
func (c *Client) Close() error {
	c.mu.Lock()
	link, cancel, done := c.link, c.cancel, c.done
	c.link, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if link == nil {
		return nil
	}

	err := link.Close()
	if err != nil {
		err = device.NormalizeError(err)
	}
	select {
	case <-done:
	case <-time.After(closeTimeout):
		c.logger.Warn("Event loop did not drain in time, cancelling")
	}
	cancel()
	<-done

	c.session.OnDisconnected()
	return err
}
