package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/peripheral"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the BLE connection was unexpectedly lost during operation.
	// This is distinct from device.ErrNotConnected, which indicates an attempt to use
	// a device that was never connected or was already disconnected.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns an error into a one-line message for the terminal.
func FormatUserError(err error) string {
	var nf *device.NotFoundError
	switch {
	case errors.As(err, &nf):
		return nf.Error()
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and retry"
	case errors.Is(err, device.ErrInvalidAddress):
		return err.Error()
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("operation timed out (%v)", err)
	case errors.Is(err, ErrConnectionLost):
		return err.Error()
	case errors.Is(err, device.ErrDisconnected):
		return fmt.Sprintf("connection lost: %v", err)
	case errors.Is(err, device.ErrNotConnected):
		return "peripheral is not connected"
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Sprintf("not supported on this platform: %v", err)
	case errors.Is(err, peripheral.ErrClosed):
		return "peripheral was closed"
	default:
		return err.Error()
	}
}
