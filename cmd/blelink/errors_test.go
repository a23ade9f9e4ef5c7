package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blelink/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "not found",
			err:      &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"180f", "2a37"}},
			expected: `characteristic "2a37" not found in service "180f"`,
		},
		{
			name:     "bluetooth off",
			err:      fmt.Errorf("connect: %w", device.ErrBluetoothOff),
			expected: "Bluetooth is turned off; enable it and retry",
		},
		{
			name:     "invalid address",
			err:      device.InvalidAddressError("kitchen"),
			expected: "invalid address: kitchen is not a valid MAC address",
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			expected: "operation timed out (context deadline exceeded)",
		},
		{
			name:     "not connected",
			err:      device.ErrNotConnected,
			expected: "peripheral is not connected",
		},
		{
			name:     "connection lost",
			err:      fmt.Errorf("%w: supervision timeout", ErrConnectionLost),
			expected: "connection lost: supervision timeout",
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			expected: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUserError(tt.err))
		})
	}
}

func TestParseHexData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
		errMsg   string
	}{
		{name: "simple hex no separators", input: "0102FF", expected: []byte{0x01, 0x02, 0xFF}},
		{name: "hex with spaces", input: "01 02 FF", expected: []byte{0x01, 0x02, 0xFF}},
		{name: "hex with colons", input: "01:02:FF", expected: []byte{0x01, 0x02, 0xFF}},
		{name: "hex with 0x prefixes", input: "0x4D 0xFC", expected: []byte{0x4D, 0xFC}},
		{name: "odd length", input: "123", errMsg: "invalid hex data"},
		{name: "empty", input: " ", errMsg: "no data to write"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := parseHexData(tt.input)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, data)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
