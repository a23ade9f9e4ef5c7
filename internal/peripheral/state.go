package peripheral

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
)

// connect force-closes any existing link, flushes pending work and opens a
// fresh link through the transport.
func (p *Peripheral) connect(autoReconnect bool, c *Completion[*device.Topology]) {
	if p.closed {
		c.Fail(ErrClosed)
		return
	}
	p.log().WithField("auto_reconnect", autoReconnect).Info("Connecting to peripheral...")

	p.closeLink()
	p.flush(device.ErrDisconnected)
	if p.connectC != nil {
		p.connectC.Close()
	}
	if p.refreshC != nil {
		p.refreshC.Fail(device.ErrDisconnected)
		p.refreshC = nil
	}

	p.autoReconnect = autoReconnect
	p.connectC = c
	p.setTopology(nil)
	p.setState(device.StateConnecting)

	p.linkGen++
	link, err := p.transport.OpenLink(p.address, autoReconnect, &linkSink{p: p, gen: p.linkGen})
	if err != nil {
		err = device.NormalizeError(err)
		p.log().WithField("error", err).Error("Failed to open link")
		p.setState(device.StateDisconnected)
		p.connectC = nil
		c.Fail(err)
		return
	}
	p.link = link
}

// disconnect is the caller-initiated teardown. It never reports an error on
// the connect stream.
func (p *Peripheral) disconnect() {
	if p.link != nil || p.state != device.StateDisconnected {
		p.log().Info("Disconnecting from peripheral")
	}
	if p.state == device.StateConnected {
		p.setState(device.StateDisconnecting)
	}

	if p.connectC != nil {
		p.connectC.Close()
		p.connectC = nil
	}
	if p.refreshC != nil {
		p.refreshC.Fail(device.ErrDisconnected)
		p.refreshC = nil
	}

	wasLinked := p.link != nil
	p.closeLink()
	p.setState(device.StateDisconnected)
	p.flush(device.ErrDisconnected)

	if wasLinked {
		p.notifyDisconnected(nil)
	}
}

// closeLink closes the transport link. Bumping the generation first makes
// every event the old link still emits stale.
func (p *Peripheral) closeLink() {
	if p.link == nil {
		return
	}
	p.linkGen++
	if err := p.link.Close(); err != nil {
		p.log().WithField("error", err).Warn("Failed to close link")
	}
	p.link = nil
}

// flush fails the in-flight command, every queued command and every
// notification stream with err.
func (p *Peripheral) flush(err error) {
	if p.inFlight != nil {
		p.inFlight.Fail(err)
		p.inFlight = nil
	}
	flushed := p.queue.Flush(err)
	cleared := p.notifications.Clear(err)

	if flushed > 0 || cleared > 0 {
		p.log().WithFields(logrus.Fields{
			"commands":      flushed,
			"subscriptions": cleared,
		}).Debug("Flushed pending work")
	}
}

func (p *Peripheral) onLinkEstablished() {
	if p.link == nil {
		return
	}
	p.log().Info("Link established")
	p.setState(device.StateConnected)

	for _, l := range p.listeners.snapshot() {
		l.OnConnected(p.address)
	}

	if err := p.link.DiscoverTopology(); err != nil {
		p.onTopologyDiscovered(nil, device.NormalizeError(err))
	}
}

func (p *Peripheral) onTopologyDiscovered(topology *device.Topology, err error) {
	// an auto-reconnect link keeps its generation across drops
	if p.state != device.StateConnected {
		p.log().WithField("state", p.state).Debug("Ignoring discovery result of a lost session")
		return
	}
	if err != nil {
		p.log().WithField("error", err).Error("Service discovery failed")
		if p.refreshC != nil {
			p.refreshC.Fail(fmt.Errorf("%w: %v", device.ErrRefreshFailed, err))
			p.refreshC = nil
			return
		}
		if p.connectC != nil {
			p.connectC.Fail(fmt.Errorf("%w: %v", device.ErrDiscoveryFailed, err))
			p.connectC = nil
		}
		p.disconnect()
		return
	}

	p.log().WithFields(logrus.Fields{
		"services":        len(topology.Services),
		"characteristics": topology.CharacteristicCount(),
	}).Info("Services discovered")
	p.setTopology(topology)

	p.enqueue(newRegisterNotifyCommand(p.opts.TelemetryService, p.opts.TelemetryCharacteristic, p.telemetryStream()))

	if p.refreshC != nil {
		p.refreshC.Resolve(topology)
		p.refreshC = nil
		return
	}
	if p.connectC != nil {
		p.connectC.Emit(topology)
	}
}

// telemetryStream is the registry handle of the automatic telemetry
// subscription. Frames are consumed by the codec, so outcomes are only logged.
func (p *Peripheral) telemetryStream() *Completion[[]byte] {
	c := newCompletion[[]byte](1)
	go func() {
		<-c.Done()
		if o, ok := c.Last(); ok && o.Err != nil && !device.IsConnectionState(o.Err, device.Disconnected) {
			p.log().WithField("error", o.Err).Warn("Telemetry subscription failed")
		}
	}()
	return c
}

func (p *Peripheral) onLinkLost(cause error) {
	if p.link == nil && p.state == device.StateDisconnected {
		return
	}
	p.log().WithFields(logrus.Fields{
		"auto_reconnect": p.autoReconnect,
		"error":          cause,
	}).Warn("Link lost")

	p.setState(device.StateDisconnected)

	lost := device.ErrDisconnected
	if cause != nil {
		lost = &device.ConnectionError{State: device.Disconnected, Msg: cause.Error()}
	}

	if p.autoReconnect {
		// the transport keeps the link and re-establishes it on its own
		if p.connectC != nil {
			p.connectC.EmitError(lost)
		}
	} else {
		p.closeLink()
		if p.connectC != nil {
			p.connectC.Fail(lost)
			p.connectC = nil
		}
	}
	if p.refreshC != nil {
		p.refreshC.Fail(lost)
		p.refreshC = nil
	}

	p.setTopology(nil)
	p.flush(device.ErrDisconnected)
	p.notifyDisconnected(lost)
}

func (p *Peripheral) notifyDisconnected(err error) {
	for _, l := range p.listeners.snapshot() {
		if dl, ok := l.(DisconnectListener); ok {
			dl.OnDisconnected(p.address, err)
		}
	}
}

func (p *Peripheral) ready() error {
	if p.closed {
		return ErrClosed
	}
	if p.state != device.StateConnected {
		return &device.ConnectionError{State: device.NotConnected, Msg: fmt.Sprintf("peripheral %s is %s", p.address, p.state)}
	}
	if p.link == nil {
		return device.ErrLinkUnavailable
	}
	return nil
}

func (p *Peripheral) requestMTU(mtu int, c *Completion[int]) {
	if err := p.ready(); err != nil {
		c.Fail(err)
		return
	}
	p.log().WithField("mtu", mtu).Debug("Requesting MTU")
	if err := p.link.RequestMTU(mtu); err != nil {
		c.Fail(device.NewTransportError("request mtu", device.NormalizeError(err)))
		return
	}
	c.Resolve(mtu)
}

func (p *Peripheral) onMTUChanged(mtu int, err error) {
	if err != nil {
		p.log().WithField("error", err).Warn("MTU exchange failed")
		return
	}
	p.log().WithField("mtu", mtu).Debug("MTU changed")
	p.mtuSnapshot.Store(int32(mtu))
}

func (p *Peripheral) refresh(delay time.Duration, c *Completion[*device.Topology]) {
	if err := p.ready(); err != nil {
		c.Fail(err)
		return
	}
	// connect and refresh share the discovery result; the first discovery owns it
	if p.topology == nil {
		c.Fail(fmt.Errorf("%w: service discovery still in progress", device.ErrRefreshFailed))
		return
	}
	refresher, ok := p.link.(device.TopologyRefresher)
	if !ok {
		c.Fail(fmt.Errorf("%w: %w", device.ErrRefreshFailed, device.ErrUnsupported))
		return
	}
	if err := refresher.RefreshTopology(); err != nil {
		c.Fail(fmt.Errorf("%w: %v", device.ErrRefreshFailed, err))
		return
	}

	if p.refreshC != nil {
		p.refreshC.Close()
	}
	p.refreshC = c

	gen := p.linkGen
	p.log().WithField("delay", delay).Debug("Attribute cache dropped, rediscovery scheduled")
	time.AfterFunc(delay, func() {
		p.post(func() {
			if gen != p.linkGen || p.link == nil || p.refreshC != c {
				return
			}
			if err := p.link.DiscoverTopology(); err != nil {
				p.onTopologyDiscovered(nil, device.NormalizeError(err))
			}
		})
	})
}
