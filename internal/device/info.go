package device

import (
	"strings"
	"time"
)

// DeviceInfo is what a scan learned about one advertising peripheral.
type DeviceInfo struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	Services    []string  `json:"services,omitempty"` // normalized UUIDs
	LastSeen    time.Time `json:"last_seen"`
}

// DisplayName returns the advertised name or the address when the peripheral is unnamed.
func (d DeviceInfo) DisplayName() string {
	if strings.TrimSpace(d.Name) == "" {
		return d.Address
	}
	return d.Name
}

// Advertises reports whether the peripheral lists the given service UUID.
func (d DeviceInfo) Advertises(uuid string) bool {
	for _, s := range d.Services {
		if SameUUID(s, uuid) {
			return true
		}
	}
	return false
}
