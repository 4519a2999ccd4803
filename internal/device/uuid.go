package device

import (
	"fmt"

	"github.com/srg/wstation/internal/bledb"
)

// NormalizeUUID reduces a UUID to the form used as a map key across the module:
// lowercase hex, no separators, SIG base UUIDs folded to 16 bits.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// SameUUID reports whether a and b name the same attribute.
func SameUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}

// ShortenUUID keeps the first eight hex digits of a 128-bit UUID.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// DisplayUUID returns the known service or characteristic name for uuid, falling
// back to its shortened form.
func DisplayUUID(uuid string) string {
	if name := bledb.LookupService(uuid); name != "" {
		return name
	}
	if name := bledb.LookupCharacteristic(uuid); name != "" {
		return name
	}
	return ShortenUUID(NormalizeUUID(uuid))
}

// ValidateUUID normalizes every UUID and rejects empty or non-hex values.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if !isHexUUID(normalized) {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}

// 16-, 32- and 128-bit forms
func isHexUUID(s string) bool {
	switch len(s) {
	case 4, 8, 32:
	default:
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
