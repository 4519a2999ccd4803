package testutils

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/wstation/internal/testutils/mocks"
)

// AdvertisementBuilder builds mock advertisements with a fluent API.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []string
	connectable bool
}

// NewAdvertisementBuilder creates a builder for a connectable, unnamed peripheral.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{rssi: -60, connectable: true}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices sets the advertised service UUIDs, in any form ble.MustParse accepts.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = uuids
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// Build creates a MockAdvertisement that implements ble.Advertisement.
// Every accessor is optional so scanners may call any subset.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	var services []ble.UUID
	for _, s := range b.services {
		services = append(services, ble.MustParse(s))
	}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.address).Maybe()

	adv := &mocks.MockAdvertisement{}
	adv.On("Addr").Return(addr).Maybe()
	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("Services").Return(services).Maybe()
	adv.On("Connectable").Return(b.connectable).Maybe()
	adv.On("ManufacturerData").Return(nil).Maybe()
	adv.On("ServiceData").Return(nil).Maybe()
	adv.On("OverflowService").Return(nil).Maybe()
	adv.On("SolicitedService").Return(nil).Maybe()
	adv.On("TxPowerLevel").Return(127).Maybe()
	return adv
}

// ReplayRadio is a scanning radio that replays a fixed set of advertisements and then
// keeps scanning until its context ends, as a real adapter does.
type ReplayRadio struct {
	mu      sync.Mutex
	ads     []ble.Advertisement
	err     error
	allowed []bool
}

// NewReplayRadio creates a radio advertising ads in order.
func NewReplayRadio(ads ...ble.Advertisement) *ReplayRadio {
	return &ReplayRadio{ads: ads}
}

// WithScanError makes Scan fail immediately with err.
func (r *ReplayRadio) WithScanError(err error) *ReplayRadio {
	r.err = err
	return r
}

// Scan implements scanner.Radio.
func (r *ReplayRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	r.mu.Lock()
	r.allowed = append(r.allowed, allowDup)
	ads, err := r.ads, r.err
	r.mu.Unlock()

	if err != nil {
		return err
	}
	for _, adv := range ads {
		if ctx.Err() != nil {
			break
		}
		h(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

// AllowDupCalls returns the allowDup argument of every Scan call.
func (r *ReplayRadio) AllowDupCalls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.allowed...)
}
