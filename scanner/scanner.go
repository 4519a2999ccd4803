package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/ringchan"
)

// Radio is the scanning half of a ble.Device.
type Radio interface {
	Scan(ctx context.Context, allowDup bool, h blelib.AdvHandler) error
}

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo device.DeviceInfo
}

// Scanner handles BLE device discovery
type Scanner struct {
	radio   Radio
	devices *hashmap.Map[string, device.DeviceInfo]
	events  *ringchan.Ring[DeviceEvent]
	logger  *logrus.Logger
	clock   func() time.Time

	mu          sync.Mutex
	scanOptions *ScanOptions
	stop        context.CancelFunc
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration `default:"10s"`
	DuplicateFilter bool          `default:"true"`
	ServiceUUIDs    []string
	// Name matches the advertised name exactly; NamePrefix matches its start.
	Name       string
	NamePrefix string
	AllowList       []string
	BlockList       []string

	// StopOnFirst ends the scan as soon as one device passes the filters.
	StopOnFirst bool
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	opts := &ScanOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// NewScanner creates a new BLE scanner on radio
func NewScanner(radio Radio, logger *logrus.Logger) (*Scanner, error) {
	if radio == nil {
		return nil, fmt.Errorf("%w: no radio", device.ErrTransportUnavailable)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		radio:   radio,
		devices: hashmap.New[string, device.DeviceInfo](),
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
		clock:   time.Now,
	}, nil
}

// Scan performs BLE discovery with provided options.
// Cancelling ctx ends the scan early; the devices seen so far are returned with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback device.ProgressCallback) (map[string]device.DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Duration > 0 {
		var timeoutCancel context.CancelFunc
		scanCtx, timeoutCancel = context.WithTimeout(scanCtx, opts.Duration)
		defer timeoutCancel()
	}

	s.mu.Lock()
	s.devices = hashmap.New[string, device.DeviceInfo]()
	s.scanOptions = opts
	s.stop = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.scanOptions = nil
		s.stop = nil
		s.mu.Unlock()
	}()

	s.logger.WithFields(logrus.Fields{
		"duration":      opts.Duration,
		"name":          opts.Name,
		"name_prefix":   opts.NamePrefix,
		"stop_on_first": opts.StopOnFirst,
	}).Info("Starting BLE scan...")
	progressCallback(device.PhaseScanning)

	err := s.radio.Scan(scanCtx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", device.NormalizeError(err))
	}

	stats := s.events.Stats()
	s.logger.WithFields(logrus.Fields{
		"device_count":       s.devices.Len(),
		"events":             stats.Pushed,
		"events_overwritten": stats.Overwritten,
	}).Info("BLE scan completed")
	progressCallback("Processing results")

	devices := make(map[string]device.DeviceInfo, s.devices.Len())
	s.devices.Range(func(key string, value device.DeviceInfo) bool {
		devices[key] = value
		return true
	})

	return devices, ctx.Err()
}

// Find scans until the first device passing the filters is seen.
// A scan that ends without a match fails with a NotFoundError wrapping device.ErrDeviceNotFound.
func (s *Scanner) Find(ctx context.Context, opts *ScanOptions, progressCallback device.ProgressCallback) (device.DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	findOpts := *opts
	findOpts.StopOnFirst = true

	devices, err := s.Scan(ctx, &findOpts, progressCallback)
	if err != nil {
		return device.DeviceInfo{}, err
	}

	found := Sorted(devices)
	if len(found) == 0 {
		return device.DeviceInfo{}, &device.NotFoundError{Resource: "device", UUIDs: describeFilter(opts)}
	}
	return found[0], nil
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	s.mu.Lock()
	opts, stop, devices := s.scanOptions, s.stop, s.devices
	s.mu.Unlock()
	if opts == nil {
		return
	}

	info := s.infoFromAdvertisement(adv)

	prev, existing := devices.Get(info.Address)
	if !existing {
		if !shouldIncludeDevice(info, opts) {
			return
		}
	} else {
		if info.Name == "" {
			info.Name = prev.Name
		}
		if len(info.Services) == 0 {
			info.Services = prev.Services
		}
	}
	devices.Set(info.Address, info)

	event := DeviceEvent{DeviceInfo: info}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	s.events.Push(event)

	if !existing && opts.StopOnFirst && stop != nil {
		stop()
	}
}

func (s *Scanner) infoFromAdvertisement(adv blelib.Advertisement) device.DeviceInfo {
	info := device.DeviceInfo{
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
		LastSeen:    s.clock(),
	}
	if addr := adv.Addr(); addr != nil {
		info.Address = addr.String()
	}
	for _, u := range adv.Services() {
		info.Services = append(info.Services, device.NormalizeUUID(u.String()))
	}
	return info
}

// shouldIncludeDevice applies the allow, block, name and service filters
func shouldIncludeDevice(info device.DeviceInfo, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if strings.EqualFold(info.Address, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(info.Address, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.Name != "" && info.Name != opts.Name {
		return false
	}

	if opts.NamePrefix != "" && !strings.HasPrefix(info.Name, opts.NamePrefix) {
		return false
	}

	if len(opts.ServiceUUIDs) > 0 {
		hasRequired := false
		for _, required := range opts.ServiceUUIDs {
			if info.Advertises(required) {
				hasRequired = true
				break
			}
		}
		if !hasRequired {
			return false
		}
	}

	return true
}

func describeFilter(opts *ScanOptions) []string {
	var parts []string
	if opts.Name != "" {
		parts = append(parts, "name="+opts.Name)
	}
	if opts.NamePrefix != "" {
		parts = append(parts, "name="+opts.NamePrefix+"*")
	}
	parts = append(parts, opts.AllowList...)
	for _, u := range opts.ServiceUUIDs {
		parts = append(parts, "service="+device.ShortenUUID(device.NormalizeUUID(u)))
	}
	if len(parts) == 0 {
		return nil
	}
	return []string{strings.Join(parts, " ")}
}

// Sorted returns the devices strongest signal first, then by address.
func Sorted(devices map[string]device.DeviceInfo) []device.DeviceInfo {
	devs := make([]device.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].RSSI != devs[j].RSSI {
			return devs[i].RSSI > devs[j].RSSI
		}
		return devs[i].Address < devs[j].Address
	})
	return devs
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
