package goble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/groutine"
)

// bleLink is one go-ble connection. Dialing, reconnects and every attribute
// operation run on background goroutines; results go to the sink.
type bleLink struct {
	address string
	auto    bool
	sink    device.EventSink
	logger  *logrus.Logger
	opts    TransportOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	client gattClient
	chars  map[string]*ble.Characteristic

	// busy guards the single outstanding attribute operation.
	busy atomic.Bool
}

var (
	_ device.Link              = (*bleLink)(nil)
	_ device.TopologyRefresher = (*bleLink)(nil)
)

func newLink(address string, auto bool, sink device.EventSink, logger *logrus.Logger, opts TransportOptions) *bleLink {
	ctx, cancel := context.WithCancel(context.Background())
	return &bleLink{
		address: address,
		auto:    auto,
		sink:    sink,
		logger:  logger,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (l *bleLink) log() *logrus.Entry {
	return l.logger.WithField("address", l.address)
}

func (l *bleLink) start() {
	groutine.Go(l.ctx, "ble-link-"+l.address, l.run)
}

// run dials until the link is closed. Without auto it gives up after the
// first failure or loss.
func (l *bleLink) run(ctx context.Context) {
	for attempt := 0; ; {
		client, err := l.dial(ctx)
		if ctx.Err() != nil {
			if client != nil {
				_ = client.CancelConnection()
			}
			return
		}

		if err == nil {
			attempt = 0
			l.setClient(client)
			l.sink.LinkEstablished()
			err = l.monitor(ctx, client)
			l.setClient(nil)
			if ctx.Err() != nil {
				return
			}
		}

		l.log().WithField("error", err).Warn("BLE link lost")
		l.sink.LinkLost(err)
		if !l.auto {
			return
		}

		delay := backoffDelay(attempt, l.opts.ReconnectBackoffMax)
		attempt++
		l.log().WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Info("Reconnect backoff")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (l *bleLink) dial(ctx context.Context) (gattClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	l.log().WithField("timeout", l.opts.ConnectTimeout).Debug("Dialing BLE device...")
	client, err := dial(dialCtx, l.address)
	if err != nil {
		return nil, dialError(err)
	}
	return client, nil
}

// monitor blocks until the client reports a disconnection or the link is closed.
func (l *bleLink) monitor(ctx context.Context, client gattClient) error {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		l.log().Debug("Client does not support Disconnected() channel, link loss is not detected")
		<-ctx.Done()
		return nil
	}
	select {
	case <-dc.Disconnected():
		return device.ErrDisconnected
	case <-ctx.Done():
		return nil
	}
}

func (l *bleLink) setClient(client gattClient) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.client = client
	if client == nil {
		l.chars = nil
	}
}

func (l *bleLink) Address() string {
	return l.address
}

// Close stops reconnecting and cancels the connection.
func (l *bleLink) Close() error {
	l.cancel()

	l.mu.Lock()
	client := l.client
	l.client = nil
	l.chars = nil
	l.mu.Unlock()

	if client == nil {
		return nil
	}
	l.log().Info("Disconnecting BLE device...")
	return NormalizeError(client.CancelConnection())
}

// RefreshTopology drops the cached attribute table; the next discovery
// re-reads it from the peripheral.
func (l *bleLink) RefreshTopology() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return device.ErrLinkUnavailable
	}
	l.chars = nil
	return nil
}

func (l *bleLink) DiscoverTopology() error {
	return l.async("discover", func(client gattClient) func() {
		profile, err := client.DiscoverProfile(true)
		if err != nil {
			return func() { l.sink.TopologyDiscovered(nil, NormalizeError(err)) }
		}
		topology, chars := convertProfile(l.address, profile)
		l.mu.Lock()
		if l.client == client {
			l.chars = chars
		}
		l.mu.Unlock()
		return func() { l.sink.TopologyDiscovered(topology, nil) }
	})
}

func (l *bleLink) ReadAttribute(ref device.CharacteristicRef) error {
	char, err := l.characteristic(ref)
	if err != nil {
		return err
	}
	return l.async("read", func(client gattClient) func() {
		data, err := client.ReadCharacteristic(char)
		return func() { l.sink.AttributeRead(ref, data, NormalizeError(err)) }
	})
}

func (l *bleLink) WriteAttribute(ref device.CharacteristicRef, data []byte, withResponse bool) error {
	char, err := l.characteristic(ref)
	if err != nil {
		return err
	}
	payload := append([]byte(nil), data...)
	return l.async("write", func(client gattClient) func() {
		err := client.WriteCharacteristic(char, payload, !withResponse)
		return func() { l.sink.AttributeWritten(ref, NormalizeError(err)) }
	})
}

func (l *bleLink) SetNotifyEnabled(ref device.CharacteristicRef, enabled bool) error {
	char, err := l.characteristic(ref)
	if err != nil {
		return err
	}
	// prefer notifications, fall back to indications
	ind := char.Property&ble.CharNotify == 0 && char.Property&ble.CharIndicate != 0

	return l.async("notify", func(client gattClient) func() {
		var err error
		if enabled {
			err = client.Subscribe(char, ind, func(data []byte) {
				l.sink.AttributeChanged(ref, append([]byte(nil), data...))
			})
		} else {
			err = client.Unsubscribe(char, ind)
		}
		return func() { l.sink.NotifyConfigured(ref, enabled, NormalizeError(err)) }
	})
}

func (l *bleLink) ReadSignalStrength() error {
	return l.async("rssi", func(client gattClient) func() {
		rssi := client.ReadRSSI()
		return func() { l.sink.SignalStrengthRead(rssi, nil) }
	})
}

// RequestMTU is not an attribute operation and may overlap with one.
func (l *bleLink) RequestMTU(mtu int) error {
	client, err := l.connected()
	if err != nil {
		return err
	}
	groutine.Go(l.ctx, "ble-mtu-"+l.address, func(context.Context) {
		tx, err := client.ExchangeMTU(mtu)
		l.sink.MTUChanged(tx, NormalizeError(err))
	})
	return nil
}

func (l *bleLink) connected() (gattClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil, device.ErrLinkUnavailable
	}
	return l.client, nil
}

func (l *bleLink) characteristic(ref device.CharacteristicRef) (*ble.Characteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil, device.ErrLinkUnavailable
	}
	char, ok := l.chars[ref.Key()]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{ref.Service, ref.Characteristic}}
	}
	return char, nil
}

// async runs op on its own goroutine. Only one operation may be outstanding;
// the slot is released before op's report reaches the sink.
func (l *bleLink) async(name string, op func(client gattClient) (report func())) error {
	client, err := l.connected()
	if err != nil {
		return err
	}
	if !l.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s while another operation is outstanding", device.ErrBusy, name)
	}
	groutine.Go(l.ctx, "ble-"+name+"-"+l.address, func(context.Context) {
		report := op(client)
		l.busy.Store(false)
		report()
	})
	return nil
}
