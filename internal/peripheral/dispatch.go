package peripheral

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/protocol"
)

// enqueue appends cmd if the link is usable and starts dispatching when idle.
func (p *Peripheral) enqueue(cmd *Command) {
	if err := p.ready(); err != nil {
		cmd.Fail(err)
		return
	}
	p.queue.Enqueue(cmd)
	p.log().WithFields(logrus.Fields{
		"op":     cmd.String(),
		"queued": p.queue.Len(),
	}).Debug("Command queued")
	p.pump()
}

// pump dispatches queued commands until one is accepted by the transport.
// Commands that cannot be started are completed with the error right away.
func (p *Peripheral) pump() {
	for {
		cmd, ok := p.queue.Next()
		if !ok {
			return
		}
		if err := p.start(cmd); err != nil {
			p.log().WithFields(logrus.Fields{
				"op":    cmd.String(),
				"error": err,
			}).Warn("Command failed to start")
			cmd.Fail(err)
			p.queue.Complete()
			continue
		}
		p.inFlight = cmd
		return
	}
}

func (p *Peripheral) start(cmd *Command) error {
	if err := p.ready(); err != nil {
		return err
	}

	var err error
	switch cmd.Kind {
	case CmdRead:
		if cmd.ref, err = p.topology.FindReadable(cmd.Service, cmd.Characteristic); err != nil {
			return err
		}
		err = p.link.ReadAttribute(cmd.ref)

	case CmdWrite, CmdWriteNoAck:
		if cmd.ref, err = p.topology.FindWritable(cmd.Service, cmd.Characteristic, cmd.WithResponse()); err != nil {
			return err
		}
		err = p.link.WriteAttribute(cmd.ref, cmd.Data, cmd.WithResponse())

	case CmdRegisterNotify:
		if cmd.ref, err = p.topology.FindNotifiable(cmd.Service, cmd.Characteristic); err != nil {
			return err
		}
		// registered before enabling so notifications racing the config write are kept
		p.notifications.Register(cmd.ref, cmd.bytes)
		if err = p.link.SetNotifyEnabled(cmd.ref, true); err != nil {
			p.notifications.Unregister(cmd.ref)
		}

	case CmdRemoveNotify:
		if cmd.ref, err = p.topology.FindNotifiable(cmd.Service, cmd.Characteristic); err != nil {
			return err
		}
		if stream, ok := p.notifications.Unregister(cmd.ref); ok {
			stream.Close()
		}
		err = p.link.SetNotifyEnabled(cmd.ref, false)

	case CmdReadSignalStrength:
		err = p.link.ReadSignalStrength()
	}

	if err != nil {
		return device.NewTransportError(cmd.Kind.String(), device.NormalizeError(err))
	}
	return nil
}

// finish takes the in-flight command if it has one of kinds, clears the busy
// flag and dispatches the next command once the caller is done with it.
func (p *Peripheral) finish(kinds ...CommandKind) (*Command, bool) {
	cmd := p.inFlight
	if cmd == nil {
		return nil, false
	}
	for _, k := range kinds {
		if cmd.Kind == k {
			p.inFlight = nil
			p.queue.Complete()
			return cmd, true
		}
	}
	return nil, false
}

func (p *Peripheral) unexpected(event string) {
	entry := p.log().WithField("event", event)
	if p.inFlight != nil {
		entry = entry.WithField("in_flight", p.inFlight.String())
	}
	entry.Warn("Ignoring completion event with no matching command")
}

func (p *Peripheral) onAttributeRead(ref device.CharacteristicRef, data []byte, err error) {
	cmd, ok := p.finish(CmdRead)
	if !ok {
		p.unexpected("attribute read")
		return
	}
	if err != nil {
		cmd.bytes.Fail(device.NewTransportError("read", device.NormalizeError(err)))
	} else {
		cmd.bytes.Resolve(data)
	}
	p.pump()
}

func (p *Peripheral) onAttributeWritten(ref device.CharacteristicRef, err error) {
	cmd, ok := p.finish(CmdWrite, CmdWriteNoAck)
	if !ok {
		p.unexpected("attribute written")
		return
	}
	if err != nil {
		cmd.ack.Fail(device.NewTransportError("write", device.NormalizeError(err)))
	} else {
		cmd.ack.Resolve(struct{}{})
	}
	p.pump()
}

func (p *Peripheral) onNotifyConfigured(ref device.CharacteristicRef, enabled bool, err error) {
	cmd, ok := p.finish(CmdRegisterNotify, CmdRemoveNotify)
	if !ok {
		p.unexpected("notify configured")
		return
	}

	switch cmd.Kind {
	case CmdRegisterNotify:
		if err != nil {
			p.notifications.Unregister(cmd.ref)
			cmd.bytes.Fail(device.NewTransportError("register notify", device.NormalizeError(err)))
		} else {
			p.log().WithFields(logrus.Fields{
				"service_uuid": cmd.ref.Service,
				"char_uuid":    cmd.ref.Characteristic,
			}).Debug("Notifications enabled")
		}
	case CmdRemoveNotify:
		if err != nil {
			cmd.ack.Fail(device.NewTransportError("remove notify", device.NormalizeError(err)))
		} else {
			cmd.ack.Resolve(struct{}{})
		}
	}
	p.pump()
}

func (p *Peripheral) onSignalStrengthRead(rssi int, err error) {
	cmd, ok := p.finish(CmdReadSignalStrength)
	if !ok {
		p.unexpected("signal strength read")
		return
	}
	if err != nil {
		cmd.rssi.Fail(device.NewTransportError("read rssi", device.NormalizeError(err)))
	} else {
		p.updateRSSI(rssi)
		cmd.rssi.Resolve(rssi)
	}
	p.pump()
}

// onAttributeChanged routes an unsolicited notification: telemetry frames go
// through the codec first, then the payload reaches the registered stream.
func (p *Peripheral) onAttributeChanged(ref device.CharacteristicRef, data []byte) {
	// Only the telemetry characteristic speaks the vendor frame format. Other
	// payloads would decode as bogus telemetry, so they bypass the codec.
	if p.opts.isTelemetry(ref) {
		p.handleFrame(data)
	}

	if stream, ok := p.notifications.Lookup(ref); ok {
		stream.Emit(append([]byte(nil), data...))
		return
	}
	p.log().WithField("char", ref.Key()).Debug("Notification without registration")
}

func (p *Peripheral) handleFrame(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		p.log().WithFields(logrus.Fields{
			"frame": protocol.Hex(frame),
			"error": err,
		}).Debug("Dropping undecodable frame")
		return
	}

	if reply, ok := protocol.Reply(msg, p.opts.Now()); ok {
		p.log().WithFields(logrus.Fields{
			"command": msg.Command(),
			"reply":   protocol.Hex(reply),
		}).Debug("Answering handshake")
		p.enqueue(newWriteCommand(p.opts.TelemetryService, p.opts.TelemetryCharacteristic, reply, true, p.handshakeAck(msg)))
		return
	}

	t, ok := msg.(protocol.Telemetry)
	if !ok {
		return
	}
	p.log().WithFields(logrus.Fields{
		"reading": t.Reading(),
		"battery": t.BatteryLevel(),
	}).Info("Telemetry received")
	for _, l := range p.listeners.snapshot() {
		l.OnTelemetry(p.address, t)
	}
}

func (p *Peripheral) handshakeAck(msg protocol.Message) *Completion[struct{}] {
	c := newCompletion[struct{}](1)
	go func() {
		<-c.Done()
		if o, ok := c.Last(); ok && o.Err != nil && !errors.Is(o.Err, device.ErrDisconnected) {
			p.log().WithFields(logrus.Fields{
				"command": msg.Command(),
				"error":   o.Err,
			}).Warn("Handshake reply failed")
		}
	}()
	return c
}
