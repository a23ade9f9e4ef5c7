package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/srg/blelink/internal/device"
)

// Call is one operation a FakeLink received.
type Call struct {
	Op           string
	Ref          device.CharacteristicRef
	Data         []byte
	WithResponse bool
	Enabled      bool
	MTU          int
}

func (c Call) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.Ref.Key())
}

// FakeTransport is a device.Transport whose links record calls and let tests
// fire transport events by hand.
type FakeTransport struct {
	mu sync.Mutex

	// OpenErr, when set, is returned by the next OpenLink calls.
	OpenErr error
	// NoRefresh makes opened links lack the TopologyRefresher capability.
	NoRefresh bool
	// RefreshErr is returned by RefreshTopology.
	RefreshErr error

	links  []*FakeLink
	opened chan *FakeLink
}

// NewFakeTransport returns an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{opened: make(chan *FakeLink, 32)}
}

// OpenLink implements device.Transport.
func (t *FakeTransport) OpenLink(address string, auto bool, sink device.EventSink) (device.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.OpenErr != nil {
		return nil, t.OpenErr
	}

	link := &FakeLink{
		address:    address,
		auto:       auto,
		sink:       sink,
		failures:   make(map[string]error),
		calls:      make(chan Call, 64),
		refreshErr: t.RefreshErr,
	}
	t.links = append(t.links, link)
	select {
	case t.opened <- link:
	default:
	}

	if t.NoRefresh {
		return link, nil
	}
	return &refreshableLink{link}, nil
}

// Links returns every link opened so far.
func (t *FakeTransport) Links() []*FakeLink {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*FakeLink(nil), t.links...)
}

// WaitLink waits for the next opened link.
func (t *FakeTransport) WaitLink(timeout time.Duration) (*FakeLink, bool) {
	select {
	case link := <-t.opened:
		return link, true
	case <-time.After(timeout):
		return nil, false
	}
}

// FakeLink is a device.Link recording every call it receives.
type FakeLink struct {
	mu         sync.Mutex
	address    string
	auto       bool
	sink       device.EventSink
	closed     bool
	failures   map[string]error
	history    []Call
	calls      chan Call
	refreshErr error
}

type refreshableLink struct {
	*FakeLink
}

func (l *refreshableLink) RefreshTopology() error {
	return l.record(Call{Op: "refresh"})
}

// Address implements device.Link.
func (l *FakeLink) Address() string { return l.address }

// Auto reports the autoReconnect flag the link was opened with.
func (l *FakeLink) Auto() bool { return l.auto }

// Sink returns the event sink handed to the transport.
func (l *FakeLink) Sink() device.EventSink { return l.sink }

// FailNext makes the next call of op return err instead of being accepted.
func (l *FakeLink) FailNext(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = err
}

// Closed reports whether Close was called.
func (l *FakeLink) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// History returns every recorded call.
func (l *FakeLink) History() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.history...)
}

// NextCall waits for the next recorded call.
func (l *FakeLink) NextCall(timeout time.Duration) (Call, bool) {
	select {
	case c := <-l.calls:
		return c, true
	case <-time.After(timeout):
		return Call{}, false
	}
}

func (l *FakeLink) record(c Call) error {
	l.mu.Lock()
	if c.Op == "refresh" && l.refreshErr != nil {
		err := l.refreshErr
		l.mu.Unlock()
		return err
	}
	if err, ok := l.failures[c.Op]; ok {
		delete(l.failures, c.Op)
		l.mu.Unlock()
		return err
	}
	l.history = append(l.history, c)
	l.mu.Unlock()

	select {
	case l.calls <- c:
	default:
	}
	return nil
}

func (l *FakeLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return l.record(Call{Op: "close"})
}

func (l *FakeLink) DiscoverTopology() error {
	return l.record(Call{Op: "discover"})
}

func (l *FakeLink) ReadAttribute(ref device.CharacteristicRef) error {
	return l.record(Call{Op: "read", Ref: ref})
}

func (l *FakeLink) WriteAttribute(ref device.CharacteristicRef, data []byte, withResponse bool) error {
	return l.record(Call{Op: "write", Ref: ref, Data: append([]byte(nil), data...), WithResponse: withResponse})
}

func (l *FakeLink) SetNotifyEnabled(ref device.CharacteristicRef, enabled bool) error {
	return l.record(Call{Op: "notify", Ref: ref, Enabled: enabled})
}

func (l *FakeLink) ReadSignalStrength() error {
	return l.record(Call{Op: "rssi"})
}

func (l *FakeLink) RequestMTU(mtu int) error {
	return l.record(Call{Op: "mtu", MTU: mtu})
}

// ThermometerTopology is the attribute table of the reference thermometer:
// battery service plus the vendor telemetry characteristic.
func ThermometerTopology(address string) *device.Topology {
	return &device.Topology{
		Address: address,
		Services: []device.Service{
			device.NewService("180F",
				device.NewCharacteristic("2A19", 3, device.PropRead|device.PropNotify, "2902"),
			),
			device.NewService(device.TelemetryServiceUUID,
				device.NewCharacteristic(device.TelemetryCharacteristicUUID, 14,
					device.PropRead|device.PropWrite|device.PropWriteNoResponse|device.PropNotify, "2902"),
			),
		},
	}
}

// TelemetryRef is the reference of the telemetry characteristic in ThermometerTopology.
var TelemetryRef = device.CharacteristicRef{Service: "fff0", Characteristic: "fff1", Instance: 14}

// BatteryRef is the reference of the battery level characteristic in ThermometerTopology.
var BatteryRef = device.CharacteristicRef{Service: "180f", Characteristic: "2a19", Instance: 3}
