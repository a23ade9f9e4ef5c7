package peripheral

import "github.com/srg/blelink/internal/device"

// linkSink forwards transport events of one link generation to the worker.
// Events from a link that was closed or replaced are dropped there.
type linkSink struct {
	p   *Peripheral
	gen uint64
}

var _ device.EventSink = (*linkSink)(nil)

func (s *linkSink) deliver(fn func()) {
	s.p.post(func() {
		if s.gen != s.p.linkGen {
			s.p.log().WithField("link_generation", s.gen).Debug("Dropping event from stale link")
			return
		}
		fn()
	})
}

func (s *linkSink) LinkEstablished() {
	s.deliver(s.p.onLinkEstablished)
}

func (s *linkSink) LinkLost(err error) {
	s.deliver(func() { s.p.onLinkLost(err) })
}

func (s *linkSink) TopologyDiscovered(topology *device.Topology, err error) {
	s.deliver(func() { s.p.onTopologyDiscovered(topology, err) })
}

func (s *linkSink) AttributeRead(ref device.CharacteristicRef, data []byte, err error) {
	s.deliver(func() { s.p.onAttributeRead(ref, data, err) })
}

func (s *linkSink) AttributeWritten(ref device.CharacteristicRef, err error) {
	s.deliver(func() { s.p.onAttributeWritten(ref, err) })
}

func (s *linkSink) NotifyConfigured(ref device.CharacteristicRef, enabled bool, err error) {
	s.deliver(func() { s.p.onNotifyConfigured(ref, enabled, err) })
}

func (s *linkSink) SignalStrengthRead(rssi int, err error) {
	s.deliver(func() { s.p.onSignalStrengthRead(rssi, err) })
}

func (s *linkSink) AttributeChanged(ref device.CharacteristicRef, data []byte) {
	s.deliver(func() { s.p.onAttributeChanged(ref, data) })
}

func (s *linkSink) MTUChanged(mtu int, err error) {
	s.deliver(func() { s.p.onMTUChanged(mtu, err) })
}
