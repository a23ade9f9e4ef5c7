package device

import (
	"fmt"

	"github.com/srg/blelink/internal/bledb"
)

// Vendor telemetry service and characteristic carrying the thermometer frames.
const (
	TelemetryServiceUUID        = "0000fff0-0000-1000-8000-00805f9b34fb"
	TelemetryCharacteristicUUID = "0000fff1-0000-1000-8000-00805f9b34fb"
)

// NormalizeUUID returns the canonical attribute key: lowercase hex without
// separators, SIG-based 128-bit UUIDs shortened to 16 bits.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

func NormalizeUUIDs(uuids []string) []string {
	return bledb.NormalizeUUIDs(uuids)
}

// SameUUID compares two UUIDs after normalization.
func SameUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}

// ValidateUUID normalizes user supplied UUIDs and rejects anything that is not
// a 16, 32 or 128-bit hex identifier.
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

func isHexUUID(s string) bool {
	switch len(s) {
	case 4, 8, 32:
	default:
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
