// Package peripheral manages a single link to a sensor peripheral: the
// connection state machine, the single-flight command queue, notification
// routing and the protocol handshake.
//
// Every Peripheral runs one worker goroutine. Caller requests and transport
// events are posted to its inbox and executed in order, so the state below is
// only ever touched by that worker and no operation can be dispatched to the
// transport while another one is outstanding.
package peripheral

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/groutine"
)

// ErrClosed is reported by operations requested after Close.
var ErrClosed = errors.New("peripheral closed")

// Peripheral is the handle of one device identity.
type Peripheral struct {
	address   string
	transport device.Transport
	logger    *logrus.Logger
	opts      Options

	inbox chan func()
	// postMu makes Close wait for in-progress posts; stopped rejects new ones.
	postMu  sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    <-chan struct{}

	listeners *listenerSet

	// Snapshots readable from any goroutine.
	stateSnapshot atomic.Int32
	mtuSnapshot   atomic.Int32
	topoSnapshot  atomic.Pointer[device.Topology]
	advMu         sync.RWMutex
	adv           *device.Advertising

	// Worker-owned state.
	closed        bool
	state         device.LinkState
	link          device.Link
	linkGen       uint64
	autoReconnect bool
	connectC      *Completion[*device.Topology]
	refreshC      *Completion[*device.Topology]
	topology      *device.Topology
	queue         *CommandQueue
	inFlight      *Command
	notifications *NotificationRegistry
}

// New creates a disconnected peripheral and starts its worker.
func New(address string, transport device.Transport, logger *logrus.Logger, opts Options) *Peripheral {
	if logger == nil {
		logger = logrus.New()
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Peripheral{
		address:       address,
		transport:     transport,
		logger:        logger,
		opts:          opts,
		inbox:         make(chan func(), opts.InboxSize),
		ctx:           ctx,
		cancel:        cancel,
		listeners:     newListenerSet(),
		state:         device.StateDisconnected,
		queue:         NewCommandQueue(),
		notifications: NewNotificationRegistry(),
	}
	p.stateSnapshot.Store(int32(device.StateDisconnected))
	p.done = groutine.Start(ctx, "peripheral-"+address, p.run)
	return p
}

func (p *Peripheral) run(ctx context.Context) {
	for {
		select {
		case fn := <-p.inbox:
			fn()
		case <-ctx.Done():
			p.shutdown()
			return
		}
	}
}

// shutdown runs whatever is still queued in the inbox, then tears the link down.
func (p *Peripheral) shutdown() {
	for {
		select {
		case fn := <-p.inbox:
			fn()
		default:
			p.closed = true
			p.disconnect()
			return
		}
	}
}

// post hands fn to the worker. It returns false once the peripheral is closed.
// Must not be called from the worker itself.
func (p *Peripheral) post(fn func()) bool {
	p.postMu.RLock()
	defer p.postMu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.inbox <- fn:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Close disconnects and stops the worker. Pending completions are failed.
func (p *Peripheral) Close() {
	// every accepted post is in the inbox once the write lock is held, and the
	// worker drains the inbox before it exits
	p.postMu.Lock()
	p.stopped = true
	p.postMu.Unlock()

	p.cancel()
	<-p.done
}

// Address returns the device identity.
func (p *Peripheral) Address() string {
	return p.address
}

// State returns the current link state.
func (p *Peripheral) State() device.LinkState {
	return device.LinkState(p.stateSnapshot.Load())
}

// IsConnected reports whether the link is in the connected state.
func (p *Peripheral) IsConnected() bool {
	return p.State() == device.StateConnected
}

// MTU returns the last MTU negotiated by the transport, 0 if unknown.
func (p *Peripheral) MTU() int {
	return int(p.mtuSnapshot.Load())
}

// Subscriptions returns the number of live notification registrations,
// the automatic telemetry one included.
func (p *Peripheral) Subscriptions() int {
	n := make(chan int, 1)
	if !p.post(func() { n <- p.notifications.Len() }) {
		return 0
	}
	return <-n
}

// Topology returns the most recently discovered attribute table.
func (p *Peripheral) Topology() *device.Topology {
	return p.topoSnapshot.Load()
}

// Advertising returns the latest advertising snapshot, nil if the peripheral
// was never observed on air.
func (p *Peripheral) Advertising() *device.Advertising {
	p.advMu.RLock()
	defer p.advMu.RUnlock()
	return p.adv
}

// Observe records an advertising report.
func (p *Peripheral) Observe(adv device.Advertisement) {
	snapshot := device.NewAdvertising(adv, time.Now())
	p.advMu.Lock()
	p.adv = snapshot
	p.advMu.Unlock()
}

func (p *Peripheral) updateRSSI(rssi int) {
	p.advMu.Lock()
	defer p.advMu.Unlock()
	if p.adv == nil {
		return
	}
	updated := *p.adv
	updated.RSSI = rssi
	p.adv = &updated
}

// AddListener registers l and returns a function that removes it.
func (p *Peripheral) AddListener(l Listener) (remove func()) {
	return p.listeners.add(l)
}

// Connect opens a fresh link, dropping any existing one first. The returned
// stream emits the topology after each successful discovery and an
// ErrDisconnected outcome per link loss while autoReconnect holds the link.
func (p *Peripheral) Connect(autoReconnect bool) *Completion[*device.Topology] {
	c := newCompletion[*device.Topology](p.opts.StreamBuffer)
	if !p.post(func() { p.connect(autoReconnect, c) }) {
		c.Fail(ErrClosed)
	}
	return c
}

// Disconnect closes the link and flushes every pending command. The connect
// stream is closed without an outcome.
func (p *Peripheral) Disconnect() *Completion[struct{}] {
	c := newCompletion[struct{}](1)
	if !p.post(func() {
		p.disconnect()
		c.Resolve(struct{}{})
	}) {
		c.Fail(ErrClosed)
	}
	return c
}

// RequestLinkCapacity asks the transport for a larger MTU. It resolves as soon
// as the request is handed to the transport.
func (p *Peripheral) RequestLinkCapacity(mtu int) *Completion[int] {
	c := newCompletion[int](1)
	if !p.post(func() { p.requestMTU(mtu, c) }) {
		c.Fail(ErrClosed)
	}
	return c
}

// RefreshTopology drops the transport attribute cache and re-runs discovery
// after delay. The result is delivered here instead of the connect stream.
func (p *Peripheral) RefreshTopology(delay time.Duration) *Completion[*device.Topology] {
	c := newCompletion[*device.Topology](1)
	if !p.post(func() { p.refresh(delay, c) }) {
		c.Fail(ErrClosed)
	}
	return c
}

// Read queues a characteristic read.
func (p *Peripheral) Read(service, characteristic string) *Completion[[]byte] {
	c := newCompletion[[]byte](1)
	p.submit(newReadCommand(service, characteristic, c))
	return c
}

// Write queues a characteristic write; withResponse selects acknowledged writes.
func (p *Peripheral) Write(service, characteristic string, data []byte, withResponse bool) *Completion[struct{}] {
	c := newCompletion[struct{}](1)
	p.submit(newWriteCommand(service, characteristic, data, withResponse, c))
	return c
}

// RegisterNotify queues a notification subscription. The stream emits every
// notification payload until RemoveNotify or a disconnect ends it.
func (p *Peripheral) RegisterNotify(service, characteristic string) *Completion[[]byte] {
	c := newCompletion[[]byte](p.opts.StreamBuffer)
	p.submit(newRegisterNotifyCommand(service, characteristic, c))
	return c
}

// RemoveNotify queues the removal of a notification subscription.
func (p *Peripheral) RemoveNotify(service, characteristic string) *Completion[struct{}] {
	c := newCompletion[struct{}](1)
	p.submit(newRemoveNotifyCommand(service, characteristic, c))
	return c
}

// ReadSignalStrength queues an RSSI read of the live link.
func (p *Peripheral) ReadSignalStrength() *Completion[int] {
	c := newCompletion[int](1)
	p.submit(newSignalStrengthCommand(c))
	return c
}

func (p *Peripheral) submit(cmd *Command) {
	if !p.post(func() { p.enqueue(cmd) }) {
		cmd.Fail(ErrClosed)
	}
}

func (p *Peripheral) setState(s device.LinkState) {
	if p.state == s {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"address": p.address,
		"from":    p.state.String(),
		"to":      s.String(),
	}).Debug("Link state changed")
	p.state = s
	p.stateSnapshot.Store(int32(s))
}

func (p *Peripheral) setTopology(t *device.Topology) {
	p.topology = t
	p.topoSnapshot.Store(t)
}

func (p *Peripheral) log() *logrus.Entry {
	return p.logger.WithField("address", p.address)
}
