package device

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/srg/blelink/internal/bledb"
)

// Well-known GATT characteristic UUIDs (16-bit short form, normalized without dashes)
const (
	CharacteristicDeviceName   = "2a00"
	CharacteristicAppearance   = "2a01"
	CharacteristicBatteryLevel = "2a19"
)

// CharacteristicParser is a function that parses a characteristic value
type CharacteristicParser func([]byte) (interface{}, error)

// parseAppearance parses the Appearance characteristic (0x2A01) value
// Returns human-readable appearance name (e.g., "Thermometer"), or nil if unknown
func parseAppearance(value []byte) (interface{}, error) {
	if len(value) != 2 {
		return nil, fmt.Errorf("appearance value must be 2 bytes, got %d", len(value))
	}

	name := bledb.LookupAppearanceCode(binary.LittleEndian.Uint16(value))
	if name == "" {
		return nil, nil
	}
	return name, nil
}

// parseBatteryLevel returns the battery charge in percent.
func parseBatteryLevel(value []byte) (interface{}, error) {
	if len(value) != 1 {
		return nil, fmt.Errorf("battery level value must be 1 byte, got %d", len(value))
	}
	if value[0] > 100 {
		return nil, fmt.Errorf("battery level %d out of range", value[0])
	}
	return int(value[0]), nil
}

func parseDeviceName(value []byte) (interface{}, error) {
	return strings.TrimRight(string(value), "\x00"), nil
}

// characteristicParsers maps normalized characteristic UUIDs to their parser functions
var characteristicParsers = map[string]CharacteristicParser{
	CharacteristicDeviceName:   parseDeviceName,
	CharacteristicAppearance:   parseAppearance,
	CharacteristicBatteryLevel: parseBatteryLevel,
}

// IsParsableCharacteristic returns true if the characteristic UUID supports value parsing
func IsParsableCharacteristic(uuid string) bool {
	_, exists := characteristicParsers[NormalizeUUID(uuid)]
	return exists
}

// ParseCharacteristicValue parses a characteristic value based on its UUID.
// Returns (nil, nil) for characteristics without a parser.
func ParseCharacteristicValue(uuid string, value []byte) (interface{}, error) {
	parser, exists := characteristicParsers[NormalizeUUID(uuid)]
	if !exists {
		return nil, nil
	}
	return parser(value)
}
