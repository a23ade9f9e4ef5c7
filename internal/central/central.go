// Package central keeps the peripherals known to the application, keyed by
// their address, and forwards caller operations to the matching handle.
package central

import (
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/peripheral"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Central is the identity -> peripheral registry.
type Central struct {
	transport device.Transport
	logger    *logrus.Logger
	opts      peripheral.Options

	handles *hashmap.Map[string, *peripheral.Peripheral]

	// observed keeps identities seen on air in first-seen order.
	observedMu sync.Mutex
	observed   *orderedmap.OrderedMap[string, struct{}]
}

// New creates an empty registry opening links through transport.
func New(transport device.Transport, logger *logrus.Logger, opts peripheral.Options) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	return &Central{
		transport: transport,
		logger:    logger,
		opts:      opts,
		handles:   hashmap.New[string, *peripheral.Peripheral](),
		observed:  orderedmap.New[string, struct{}](),
	}
}

func key(id string) string {
	return device.NormalizeAddress(id)
}

func notFound(id string) error {
	return &device.NotFoundError{Resource: "peripheral", UUIDs: []string{id}}
}

// Peripheral returns the handle registered for id.
func (c *Central) Peripheral(id string) (*peripheral.Peripheral, error) {
	p, ok := c.handles.Get(key(id))
	if !ok {
		return nil, notFound(id)
	}
	return p, nil
}

// getOrCreate returns the handle for id, creating it on first use.
func (c *Central) getOrCreate(id string) *peripheral.Peripheral {
	k := key(id)
	if p, ok := c.handles.Get(k); ok {
		return p
	}

	created := peripheral.New(k, c.transport, c.logger, c.opts)
	p, loaded := c.handles.GetOrInsert(k, created)
	if loaded {
		created.Close()
		return p
	}
	c.logger.WithField("address", k).Debug("Peripheral registered")
	return p
}

// Register returns the handle for id, creating it when id is a valid
// address. Listeners added to a fresh handle see its first connection.
func (c *Central) Register(id string) (*peripheral.Peripheral, error) {
	if p, err := c.Peripheral(id); err == nil {
		return p, nil
	}
	if !device.IsValidAddress(id) {
		return nil, notFound(id)
	}
	return c.getOrCreate(id), nil
}

// Connect connects to id. Unknown identities are created on first use when
// they are valid addresses; otherwise the result fails with a NotFoundError.
func (c *Central) Connect(id string) *peripheral.Completion[*device.Topology] {
	p, err := c.Register(id)
	if err != nil {
		return peripheral.Failed[*device.Topology](err)
	}
	return p.Connect(false)
}

// AutoConnect connects to id and keeps reconnecting after every link loss.
func (c *Central) AutoConnect(id string) *peripheral.Completion[*device.Topology] {
	p, err := c.Register(id)
	if err != nil {
		return peripheral.Failed[*device.Topology](device.InvalidAddressError(id))
	}
	return p.Connect(true)
}

// Disconnect closes the link of id and fails its pending commands.
func (c *Central) Disconnect(id string) *peripheral.Completion[struct{}] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[struct{}](err)
	}
	return p.Disconnect()
}

// Remove disconnects id and forgets it.
func (c *Central) Remove(id string) error {
	k := key(id)
	p, ok := c.handles.Get(k)
	if !ok {
		return notFound(id)
	}
	c.handles.Del(k)
	p.Close()

	c.observedMu.Lock()
	c.observed.Delete(k)
	c.observedMu.Unlock()
	return nil
}

// Observe records an advertising report, creating the peripheral if needed.
func (c *Central) Observe(adv device.Advertisement) {
	id := adv.Addr()
	if id == "" {
		return
	}
	p := c.getOrCreate(id)
	p.Observe(adv)

	c.observedMu.Lock()
	defer c.observedMu.Unlock()
	if _, seen := c.observed.Get(key(id)); !seen {
		c.observed.Set(key(id), struct{}{})
	}
}

// List returns the peripherals seen on air, in first-seen order.
func (c *Central) List() []*peripheral.Peripheral {
	c.observedMu.Lock()
	defer c.observedMu.Unlock()

	out := make([]*peripheral.Peripheral, 0, c.observed.Len())
	for pair := c.observed.Oldest(); pair != nil; pair = pair.Next() {
		if p, ok := c.handles.Get(pair.Key); ok {
			out = append(out, p)
		}
	}
	return out
}

// IsConnected reports whether id is known and connected.
func (c *Central) IsConnected(id string) bool {
	p, err := c.Peripheral(id)
	return err == nil && p.IsConnected()
}

// Len returns the number of registered peripherals.
func (c *Central) Len() int {
	return c.handles.Len()
}

func (c *Central) Read(id, service, characteristic string) *peripheral.Completion[[]byte] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[[]byte](err)
	}
	return p.Read(service, characteristic)
}

func (c *Central) Write(id, service, characteristic string, data []byte, withResponse bool) *peripheral.Completion[struct{}] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[struct{}](err)
	}
	return p.Write(service, characteristic, data, withResponse)
}

func (c *Central) RegisterNotify(id, service, characteristic string) *peripheral.Completion[[]byte] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[[]byte](err)
	}
	return p.RegisterNotify(service, characteristic)
}

func (c *Central) RemoveNotify(id, service, characteristic string) *peripheral.Completion[struct{}] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[struct{}](err)
	}
	return p.RemoveNotify(service, characteristic)
}

func (c *Central) ReadSignalStrength(id string) *peripheral.Completion[int] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[int](err)
	}
	return p.ReadSignalStrength()
}

func (c *Central) RequestLinkCapacity(id string, mtu int) *peripheral.Completion[int] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[int](err)
	}
	return p.RequestLinkCapacity(mtu)
}

func (c *Central) RefreshTopology(id string, delay time.Duration) *peripheral.Completion[*device.Topology] {
	p, err := c.Peripheral(id)
	if err != nil {
		return peripheral.Failed[*device.Topology](err)
	}
	return p.RefreshTopology(delay)
}

// Close disconnects and stops every peripheral.
func (c *Central) Close() {
	var handles []*peripheral.Peripheral
	c.handles.Range(func(_ string, p *peripheral.Peripheral) bool {
		handles = append(handles, p)
		return true
	})
	for _, p := range handles {
		p.Close()
	}
	c.logger.WithField("peripherals", len(handles)).Debug("Central closed")
}
