package device

import (
	"regexp"
	"strings"
)

var (
	macAddressPattern      = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	platformAddressPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)
)

// IsValidAddress reports whether address is a MAC address or a CoreBluetooth
// peripheral UUID.
func IsValidAddress(address string) bool {
	address = strings.TrimSpace(address)
	return macAddressPattern.MatchString(address) || platformAddressPattern.MatchString(address)
}

// NormalizeAddress trims and upper-cases an address so lookups are stable.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
