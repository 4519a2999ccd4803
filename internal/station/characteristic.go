package station

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/bledb"
	"github.com/srg/wstation/internal/device"
)

// CharacteristicID names one of the seven characteristics the station protocol uses.
type CharacteristicID int

const (
	Control CharacteristicID = iota + 1
	RecordCount
	Date
	Time
	Temperature
	Pressure
	Humidity
)

// AllCharacteristics lists every characteristic a connection must provide.
var AllCharacteristics = []CharacteristicID{Control, RecordCount, Date, Time, Temperature, Pressure, Humidity}

func (id CharacteristicID) String() string {
	switch id {
	case Control:
		return "control"
	case RecordCount:
		return "record-count"
	case Date:
		return "date"
	case Time:
		return "time"
	case Temperature:
		return "temperature"
	case Pressure:
		return "pressure"
	case Humidity:
		return "humidity"
	default:
		return fmt.Sprintf("characteristic(%d)", int(id))
	}
}

// Profile maps characteristic IDs to UUIDs for one station firmware.
type Profile struct {
	Service         string
	Characteristics map[CharacteristicID]string
}

// DefaultProfile returns the UUIDs of the stock station firmware.
func DefaultProfile() Profile {
	return Profile{
		Service: bledb.WeatherServiceUUID,
		Characteristics: map[CharacteristicID]string{
			Control:     bledb.ControlUUID,
			RecordCount: bledb.RecordCountUUID,
			Date:        bledb.DateUUID,
			Time:        bledb.TimeUUID,
			Temperature: bledb.TemperatureUUID,
			Pressure:    bledb.PressureUUID,
			Humidity:    bledb.HumidityUUID,
		},
	}
}

// Resolve picks the profile's characteristics out of a discovered handle set keyed by
// normalized UUID. Missing entries are simply absent from the result; validation is
// left to the Registry so that the error surfaces through the connection lifecycle.
func (p Profile) Resolve(discovered map[string]device.Handle) map[CharacteristicID]device.Handle {
	out := make(map[CharacteristicID]device.Handle, len(p.Characteristics))
	for id, uuid := range p.Characteristics {
		if h, ok := discovered[device.NormalizeUUID(uuid)]; ok {
			out[id] = h
		}
	}
	return out
}

// Registry maps characteristic IDs to transport handles for the current connection.
// It is populated once per connection and read-only afterwards.
type Registry struct {
	service string
	handles map[CharacteristicID]device.Handle
	byUUID  map[string]CharacteristicID
}

func newRegistry(service string) *Registry {
	return &Registry{service: service}
}

// populate validates that all required characteristics are present and installs them.
// On error the registry is left empty.
func (r *Registry) populate(handles map[CharacteristicID]device.Handle) error {
	var missing []string
	for _, id := range AllCharacteristics {
		if h, ok := handles[id]; !ok || h == nil {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &device.NotFoundError{Resource: "characteristic", UUIDs: append([]string{r.service}, missing...)}
	}

	r.handles = make(map[CharacteristicID]device.Handle, len(AllCharacteristics))
	r.byUUID = make(map[string]CharacteristicID, len(AllCharacteristics))
	for _, id := range AllCharacteristics {
		h := handles[id]
		r.handles[id] = h
		r.byUUID[device.NormalizeUUID(h.UUID())] = id
	}
	return nil
}

// Lookup returns the handle for id.
func (r *Registry) Lookup(id CharacteristicID) (device.Handle, error) {
	h, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrCharacteristicMissing, id)
	}
	return h, nil
}

// Resolve maps a handle received from the transport back to its characteristic ID.
func (r *Registry) Resolve(h device.Handle) (CharacteristicID, bool) {
	if h == nil || r.byUUID == nil {
		return 0, false
	}
	id, ok := r.byUUID[device.NormalizeUUID(h.UUID())]
	return id, ok
}

// Ready reports whether the registry holds a complete handle set.
func (r *Registry) Ready() bool {
	return len(r.handles) == len(AllCharacteristics)
}

func (r *Registry) reset() {
	r.handles = nil
	r.byUUID = nil
}

func (r *Registry) logFields() logrus.Fields {
	fields := logrus.Fields{"service": r.service}
	for id, h := range r.handles {
		fields[id.String()] = device.ShortenUUID(device.NormalizeUUID(h.UUID()))
	}
	return fields
}
