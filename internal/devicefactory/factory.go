// Package devicefactory hands out the platform BLE backends. The variables
// are swapped for fakes in tests.
package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	goble "github.com/srg/blelink/internal/device/go-ble"
)

// DeviceFactory creates a device.ScanningDevice for advertisement discovery.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = goble.NewScanner

// TransportFactory creates the transport peripheral links are opened through.
var TransportFactory = func(logger *logrus.Logger, opts goble.TransportOptions) device.Transport {
	return goble.NewTransport(logger, opts)
}
