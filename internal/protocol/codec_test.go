package protocol_test

import (
	"testing"
	"time"

	"github.com/srg/blelink/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected protocol.Message
	}{
		{
			name:     "clock sync request",
			frame:    []byte{0x4D, 0xFC, 0x00, 0x01, 0xA1},
			expected: protocol.ClockSyncRequest{},
		},
		{
			name:     "sequence ack request carries counter bytes",
			frame:    []byte{0x4D, 0xFC, 0x00, 0x04, 0xA3, 0x00, 0x12, 0x34},
			expected: protocol.SequenceAckRequest{High: 0x12, Low: 0x34},
		},
		{
			name:  "telemetry frame",
			frame: []byte{0x18, 0x03, 0x0F, 0x0A, 0x1E, 0x24, 0x05, 0x64},
			expected: protocol.Telemetry{
				Year: 0x18, Month: 0x03, Day: 0x0F, Hour: 0x0A, Minute: 0x1E,
				Primary: 0x24, Secondary: 0x05, Battery: 0x64, Code: 0x1E,
			},
		},
		{
			name:  "unknown command falls back to telemetry",
			frame: []byte{0x4D, 0xFC, 0x00, 0x04, 0xB7, 0x01, 0x02, 0x03},
			expected: protocol.Telemetry{
				Year: 0x4D, Month: 0xFC, Day: 0x00, Hour: 0x04, Minute: 0xB7,
				Primary: 0x01, Secondary: 0x02, Battery: 0x03, Code: 0xB7,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.Decode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg)
		})
	}
}

func TestDecodeShortFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "no command byte", frame: []byte{0x4D, 0xFC, 0x00, 0x01}},
		{name: "sequence ack without counters", frame: []byte{0x4D, 0xFC, 0x00, 0x04, 0xA3, 0x00}},
		{name: "telemetry shorter than eight bytes", frame: []byte{0x18, 0x03, 0x0F, 0x0A, 0x1E}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := protocol.Decode(tt.frame)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, protocol.ErrShortFrame)
		})
	}
}

func TestEncodeClockSyncReply(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 30, 45, 0, time.UTC)

	frame := protocol.EncodeClockSyncReply(now)

	assert.Equal(t,
		[]byte{0x4D, 0xFC, 0x00, 0x08, 0xA1, 0x18, 0x03, 0x0F, 0x0A, 0x1E, 0x07, 0x3E},
		frame,
		"clock sync reply MUST carry year-in-century, month, day, hour, minute, control mode and the fixed checksum")
}

func TestEncodeSequenceAck(t *testing.T) {
	frame := protocol.EncodeSequenceAck(0x12, 0x34)

	assert.Equal(t, []byte{0x4D, 0xFC, 0x00, 0x04, 0xA3, 0x12, 0x34, 0xBB}, frame)
}

func TestReply(t *testing.T) {
	now := time.Date(2031, time.December, 1, 23, 59, 0, 0, time.UTC)

	t.Run("clock sync", func(t *testing.T) {
		frame, ok := protocol.Reply(protocol.ClockSyncRequest{}, now)
		require.True(t, ok)
		assert.Equal(t, protocol.EncodeClockSyncReply(now), frame)
	})

	t.Run("sequence ack", func(t *testing.T) {
		frame, ok := protocol.Reply(protocol.SequenceAckRequest{High: 0xFF, Low: 0x00}, now)
		require.True(t, ok)
		assert.Equal(t, []byte{0x4D, 0xFC, 0x00, 0x04, 0xA3, 0xFF, 0x00, 0xBB}, frame)
	})

	t.Run("telemetry needs no reply", func(t *testing.T) {
		frame, ok := protocol.Reply(protocol.Telemetry{}, now)
		assert.False(t, ok)
		assert.Nil(t, frame)
	})
}

func TestTelemetryHelpers(t *testing.T) {
	tm := protocol.Telemetry{Year: 24, Month: 3, Day: 15, Hour: 10, Minute: 30, Primary: 36, Secondary: 6, Battery: 0x64}

	assert.Equal(t, "36.6", tm.Reading())
	assert.Equal(t, 2, tm.BatteryLevel())
	assert.Equal(t, 1, protocol.Telemetry{Battery: 0}.BatteryLevel())
	assert.Equal(t, 3, protocol.Telemetry{Battery: 0xFF}.BatteryLevel())
	assert.Equal(t, time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC), tm.Timestamp(time.UTC))
}

func TestSequenceAckCounter(t *testing.T) {
	assert.Equal(t, uint16(0x1234), protocol.SequenceAckRequest{High: 0x12, Low: 0x34}.Counter())
}

func TestHex(t *testing.T) {
	assert.Equal(t, "4D FC 00 04 A3 12 34 BB", protocol.Hex(protocol.EncodeSequenceAck(0x12, 0x34)))
	assert.Equal(t, "", protocol.Hex(nil))
}
