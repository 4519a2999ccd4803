// Package bledb holds UUID normalisation and the table of UUIDs known to the
// weather station tooling: the station's own GATT profile plus the handful of
// Bluetooth SIG entries that show up next to it during scans and discovery.
package bledb

import "strings"

// sigBaseSuffix is the Bluetooth SIG base UUID without the 16-bit slot,
// i.e. 0000xxxx-0000-1000-8000-00805f9b34fb.
const sigBaseSuffix = "00001000800000805f9b34fb"

// DefaultDeviceName is the advertised local name of the weather station.
const DefaultDeviceName = "WeatherStation"

// Weather station GATT profile
const (
	WeatherServiceUUID     = "7e8a0001-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	ControlUUID            = "7e8a0002-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	RecordCountUUID        = "7e8a0003-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	DateUUID               = "7e8a0004-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	TimeUUID               = "7e8a0005-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	TemperatureUUID        = "7e8a0006-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	PressureUUID           = "7e8a0007-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	HumidityUUID           = "7e8a0008-3c1f-4b2a-9d5e-6f0c1a2b3c4d"
	ClientCharConfigUUID   = "2902"
	CharUserDescriptorUUID = "2901"
)

var services = map[string]string{
	NormalizeUUID(WeatherServiceUUID): "Weather Station",
	"1800":                            "Generic Access",
	"1801":                            "Generic Attribute",
	"180a":                            "Device Information",
	"180f":                            "Battery Service",
	"181a":                            "Environmental Sensing",
}

var characteristics = map[string]string{
	NormalizeUUID(ControlUUID):     "Weather Station Control",
	NormalizeUUID(RecordCountUUID): "Stored Record Count",
	NormalizeUUID(DateUUID):        "Record Date",
	NormalizeUUID(TimeUUID):        "Record Time",
	NormalizeUUID(TemperatureUUID): "Record Temperature",
	NormalizeUUID(PressureUUID):    "Record Pressure",
	NormalizeUUID(HumidityUUID):    "Record Humidity",
	"2a00":                         "Device Name",
	"2a19":                         "Battery Level",
	"2a29":                         "Manufacturer Name String",
	"2a6d":                         "Pressure",
	"2a6e":                         "Temperature",
	"2a6f":                         "Humidity",
}

var descriptors = map[string]string{
	ClientCharConfigUUID:   "Client Characteristic Configuration",
	CharUserDescriptorUUID: "Characteristic User Descriptor",
}

// NormalizeUUID converts a UUID string to the internal BLE library format (lowercase, no dashes).
// Handles both standard UUID format (with dashes) and already normalized format (without dashes).
// Also strips 0x prefix and braces. Full 128-bit UUIDs in Bluetooth SIG base format
// are reduced to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "{")
	u = strings.TrimSuffix(u, "}")
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// LookupService returns the known name of a service, or "" when unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name of a characteristic, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the known name of a descriptor, or "" when unknown.
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}
