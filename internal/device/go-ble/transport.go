package goble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// gattClient is the part of ble.Client a link drives.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	ReadRSSI() int
	ExchangeMTU(rxMTU int) (txMTU int, err error)
	CancelConnection() error
}

// dial connects to address on the default HCI device.
var dial = func(ctx context.Context, address string) (gattClient, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// TransportOptions tunes link establishment.
type TransportOptions struct {
	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration
	// ReconnectBackoffMax caps the delay between automatic reconnect attempts.
	ReconnectBackoffMax time.Duration
}

// Transport opens go-ble links. It implements device.Transport.
type Transport struct {
	logger *logrus.Logger
	opts   TransportOptions
}

var _ device.Transport = (*Transport)(nil)

// NewTransport creates a go-ble backed transport.
func NewTransport(logger *logrus.Logger, opts TransportOptions) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ReconnectBackoffMax <= 0 {
		opts.ReconnectBackoffMax = 30 * time.Second
	}
	return &Transport{logger: logger, opts: opts}
}

// OpenLink starts connecting to address in the background. Progress is
// reported to sink; with auto set, the link keeps redialing after every loss
// until it is closed.
func (t *Transport) OpenLink(address string, auto bool, sink device.EventSink) (device.Link, error) {
	if !device.IsValidAddress(address) {
		return nil, device.InvalidAddressError(address)
	}
	l := newLink(device.NormalizeAddress(address), auto, sink, t.logger, t.opts)
	l.start()
	return l, nil
}

// backoffDelay returns the reconnection delay for attempt n, capped at max.
func backoffDelay(attempt int, max time.Duration) time.Duration {
	if attempt > 30 {
		return max
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > max {
		return max
	}
	return delay
}

func dialError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	}
	return NormalizeError(err)
}
