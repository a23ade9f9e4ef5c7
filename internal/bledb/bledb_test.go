package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "fff1", expected: "fff1"},
		{input: "0xFFF1", expected: "fff1"},
		{input: "0000fff1-0000-1000-8000-00805f9b34fb", expected: "fff1"},
		{input: "0000FFF100001000800000805F9B34FB", expected: "fff1"},
		{input: "{00002a19-0000-1000-8000-00805f9b34fb}", expected: "2a19"},
		{input: "  00002902-0000-1000-8000-00805f9b34fb\t", expected: "2902"},
		// vendor bases keep all 128 bits
		{input: "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{input: "0000fff1-0000-1000-8000-00805f9b34fc", expected: "0000fff100001000800000805f9b34fc"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	assert.Equal(t, []string{"fff0", "180f"}, NormalizeUUIDs([]string{"0000FFF0-0000-1000-8000-00805f9b34fb", "0x180F"}))
	assert.Empty(t, NormalizeUUIDs(nil))
}

func TestLookups(t *testing.T) {
	tests := []struct {
		name     string
		lookup   func(string) string
		uuid     string
		expected string
	}{
		{name: "telemetry service", lookup: LookupService, uuid: "0000fff0-0000-1000-8000-00805f9b34fb", expected: "Vendor Telemetry"},
		{name: "battery service", lookup: LookupService, uuid: "0x180F", expected: "Battery Service"},
		{name: "health thermometer", lookup: LookupService, uuid: "1809", expected: "Health Thermometer"},
		{name: "unknown service", lookup: LookupService, uuid: "ffe0", expected: ""},
		{name: "telemetry frame", lookup: LookupCharacteristic, uuid: "FFF1", expected: "Vendor Telemetry Frame"},
		{name: "battery level", lookup: LookupCharacteristic, uuid: "00002a19-0000-1000-8000-00805f9b34fb", expected: "Battery Level"},
		{name: "temperature measurement", lookup: LookupCharacteristic, uuid: "2a1c", expected: "Temperature Measurement"},
		{name: "client configuration", lookup: LookupDescriptor, uuid: "00002902-0000-1000-8000-00805f9b34fb", expected: "Client Characteristic Configuration"},
		{name: "descriptor is not a characteristic", lookup: LookupCharacteristic, uuid: "2902", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.lookup(tt.uuid))
		})
	}
}

func TestLookupAppearanceCode(t *testing.T) {
	assert.Equal(t, "Thermometer", LookupAppearanceCode(768))
	assert.Equal(t, "Ear Thermometer", LookupAppearanceCode(769))
	assert.Equal(t, "Phone", LookupAppearanceCode(65), "unknown sub-category MUST fall back to its category")
	assert.Equal(t, "", LookupAppearanceCode(0x1234))
}

func TestLookupCompany(t *testing.T) {
	assert.Equal(t, "Apple, Inc.", LookupCompany(0x004C))
	assert.Equal(t, "Nordic Semiconductor ASA", LookupCompany(0x0059))
	assert.Empty(t, LookupCompany(0x1234))
}
