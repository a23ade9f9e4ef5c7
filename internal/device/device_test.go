package device_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *device.NotFoundError
		expected string
	}{
		{name: "no identifiers", err: &device.NotFoundError{Resource: "peripheral"}, expected: "peripheral not found"},
		{name: "single identifier", err: &device.NotFoundError{Resource: "peripheral", UUIDs: []string{"AA:BB:CC:DD:EE:FF"}}, expected: `peripheral "AA:BB:CC:DD:EE:FF" not found`},
		{name: "characteristic in service", err: &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"fff0", "fff1"}}, expected: `characteristic "fff1" not found in service "fff0"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.expected)
		})
	}
}

func TestConnectionErrorMatching(t *testing.T) {
	t.Run("wrapped sentinel matches by state", func(t *testing.T) {
		err := fmt.Errorf("write: %w", device.ErrDisconnected)

		assert.ErrorIs(t, err, device.ErrDisconnected)
		assert.NotErrorIs(t, err, device.ErrNotConnected)
		assert.True(t, device.IsConnectionState(err, device.Disconnected))
	})

	t.Run("message does not affect matching", func(t *testing.T) {
		err := &device.ConnectionError{State: device.NotConnected, Msg: "peripheral AA is idle"}

		assert.ErrorIs(t, err, device.ErrNotConnected)
		assert.Equal(t, "not_connected: peripheral AA is idle", err.Error())
	})

	t.Run("nil receiver", func(t *testing.T) {
		var err *device.ConnectionError
		assert.Equal(t, "<nil>", err.Error())
		assert.False(t, err.Is(device.ErrNotConnected))
	})
}

func TestTransportError(t *testing.T) {
	cause := errors.New("status 133")

	err := device.NewTransportError("read", cause)

	var terr *device.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "read", terr.Op)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "read failed: status 133")

	assert.Nil(t, device.NewTransportError("read", nil))
	assert.Same(t, terr, device.NewTransportError("write", err).(*device.TransportError), "existing transport errors MUST not be wrapped twice")
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name   string
		input  error
		target error
	}{
		{name: "not connected", input: errors.New("Device not connected"), target: device.ErrNotConnected},
		{name: "already connected", input: errors.New("device already connected"), target: device.ErrAlreadyConnected},
		{name: "disconnected", input: errors.New("peripheral disconnected"), target: device.ErrDisconnected},
		{name: "adapter off", input: errors.New("Bluetooth is turned off"), target: device.ErrBluetoothOff},
		{name: "adapter powered off", input: errors.New("central manager: powered off"), target: device.ErrBluetoothOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, device.NormalizeError(tt.input), tt.target)
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		err := errors.New("att: invalid handle")
		assert.Same(t, err, device.NormalizeError(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, device.NormalizeError(nil))
	})
}

func TestInvalidAddressError(t *testing.T) {
	err := device.InvalidAddressError("nope")

	assert.ErrorIs(t, err, device.ErrInvalidAddress)
	assert.Contains(t, err.Error(), "nope is not a valid MAC address")
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"AA:BB:CC:DD:EE:FF", true},
		{"aa:bb:cc:dd:ee:ff", true},
		{"AA-BB-CC-DD-EE-FF", true},
		{"2B0A8C1E-4F7D-4C3A-9D8E-0123456789AB", true},
		{"AA:BB:CC:DD:EE", false},
		{"AA:BB:CC:DD:EE:GG", false},
		{"", false},
		{"not-an-address", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.valid, device.IsValidAddress(tt.address))
		})
	}
}

func TestLinkStateString(t *testing.T) {
	assert.Equal(t, "disconnected", device.StateDisconnected.String())
	assert.Equal(t, "connecting", device.StateConnecting.String())
	assert.Equal(t, "connected", device.StateConnected.String())
	assert.Equal(t, "disconnecting", device.StateDisconnecting.String())
	assert.Equal(t, "LinkState(9)", device.LinkState(9).String())
}

func TestPropertyString(t *testing.T) {
	assert.Equal(t, "read,notify", (device.PropRead | device.PropNotify).String())
	assert.Equal(t, "", device.Property(0).String())
	assert.True(t, (device.PropWrite | device.PropWriteNoResponse).Has(device.PropWriteNoResponse))
}

func TestCharacteristicRefKey(t *testing.T) {
	ref := device.CharacteristicRef{Service: "fff0", Characteristic: "fff1", Instance: 14}

	assert.Equal(t, "fff0|fff1|14", ref.Key())
}

func newThermometerTopology() *device.Topology {
	return &device.Topology{
		Address: "AA:BB:CC:DD:EE:FF",
		Services: []device.Service{
			device.NewService("180F",
				device.NewCharacteristic("2A19", 3, device.PropRead|device.PropNotify, "2902"),
			),
			device.NewService(device.TelemetryServiceUUID,
				device.NewCharacteristic("fff1", 10, device.PropWriteNoResponse),
				device.NewCharacteristic("fff1", 12, device.PropIndicate|device.PropWrite),
				device.NewCharacteristic("fff1", 14, device.PropNotify|device.PropRead),
				device.NewCharacteristic("fff2", 16, 0),
			),
		},
	}
}

func TestTopologyLookup(t *testing.T) {
	topo := newThermometerTopology()

	t.Run("notify prefers notify, then indicate", func(t *testing.T) {
		ref, err := topo.FindNotifiable("FFF0", device.TelemetryCharacteristicUUID)
		require.NoError(t, err)
		assert.Equal(t, uint16(14), ref.Instance, "notify capable instance MUST win")
	})

	t.Run("read prefers read capable instance", func(t *testing.T) {
		ref, err := topo.FindReadable("fff0", "fff1")
		require.NoError(t, err)
		assert.Equal(t, device.CharacteristicRef{Service: "fff0", Characteristic: "fff1", Instance: 14}, ref)
	})

	t.Run("write type selects the instance", func(t *testing.T) {
		withAck, err := topo.FindWritable("fff0", "fff1", true)
		require.NoError(t, err)
		assert.Equal(t, uint16(12), withAck.Instance)

		noAck, err := topo.FindWritable("fff0", "fff1", false)
		require.NoError(t, err)
		assert.Equal(t, uint16(10), noAck.Instance)
	})

	t.Run("falls back to any matching uuid", func(t *testing.T) {
		ref, err := topo.FindNotifiable("fff0", "fff2")
		require.NoError(t, err)
		assert.Equal(t, uint16(16), ref.Instance)
	})

	t.Run("missing service", func(t *testing.T) {
		_, err := topo.FindReadable("180d", "2a37")

		var nf *device.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "service", nf.Resource)
	})

	t.Run("missing characteristic", func(t *testing.T) {
		_, err := topo.FindReadable("180f", "2a37")
		assert.EqualError(t, err, `characteristic "2a37" not found in service "180f"`)
	})

	t.Run("nil topology", func(t *testing.T) {
		var empty *device.Topology
		_, err := empty.FindReadable("180f", "2a19")
		assert.Error(t, err)
		assert.Equal(t, 0, empty.CharacteristicCount())
	})

	assert.Equal(t, 5, topo.CharacteristicCount())
}

func TestNewAdvertising(t *testing.T) {
	ja := testutils.NewJSONAsserter(t)
	seen := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("Thermo").
		WithRSSI(-48).
		WithServices("0000fff0-0000-1000-8000-00805f9b34fb", "180F").
		WithManufacturerData([]byte{0x4D, 0x01}).
		WithTxPower(4).
		Build()

	snapshot := device.NewAdvertising(adv, seen)
	actual, err := json.Marshal(snapshot)
	require.NoError(t, err)

	ja.Assert(string(actual), `{
		"Address": "AA:BB:CC:DD:EE:FF",
		"LocalName": "Thermo",
		"ManufacturerData": "TQE=",
		"Services": ["fff0", "180f"],
		"RSSI": -48,
		"TxPower": 4,
		"Connectable": true,
		"SeenAt": "2024-03-15T10:30:00Z"
	}`)
}
