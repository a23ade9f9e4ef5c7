package device_test

import (
	"testing"

	"github.com/srg/blelink/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestParseCharacteristicValue(t *testing.T) {
	tests := []struct {
		name     string
		uuid     string
		value    []byte
		expected interface{}
		errMsg   string
	}{
		{name: "thermometer appearance", uuid: "2A01", value: []byte{0x00, 0x03}, expected: "Thermometer"},
		{name: "unknown appearance", uuid: "2a01", value: []byte{0x34, 0x12}, expected: nil},
		{name: "short appearance", uuid: "2a01", value: []byte{0x00}, errMsg: "must be 2 bytes"},
		{name: "battery level", uuid: "00002a19-0000-1000-8000-00805f9b34fb", value: []byte{87}, expected: 87},
		{name: "battery out of range", uuid: "2a19", value: []byte{101}, errMsg: "out of range"},
		{name: "device name with padding", uuid: "2a00", value: []byte("Thermo\x00\x00"), expected: "Thermo"},
		{name: "no parser", uuid: "fff1", value: []byte{1, 2}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := device.ParseCharacteristicValue(tt.uuid, tt.value)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, parsed)
		})
	}

	assert.True(t, device.IsParsableCharacteristic("2A19"))
	assert.False(t, device.IsParsableCharacteristic("fff1"))
}
