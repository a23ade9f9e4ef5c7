package peripheral

import (
	"fmt"

	"github.com/srg/blelink/internal/device"
)

// CommandKind tags the attribute operation a Command performs.
type CommandKind int

const (
	CmdRead CommandKind = iota
	CmdWrite
	CmdWriteNoAck
	CmdRegisterNotify
	CmdRemoveNotify
	CmdReadSignalStrength
)

func (k CommandKind) String() string {
	switch k {
	case CmdRead:
		return "read"
	case CmdWrite:
		return "write"
	case CmdWriteNoAck:
		return "write-without-response"
	case CmdRegisterNotify:
		return "register-notify"
	case CmdRemoveNotify:
		return "remove-notify"
	case CmdReadSignalStrength:
		return "read-rssi"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one queued attribute operation and the handle its caller waits
// on. Exactly one of the completion fields is set, depending on Kind.
type Command struct {
	Kind           CommandKind
	Service        string
	Characteristic string
	Data           []byte

	// ref is resolved against the topology when the command is dispatched.
	ref device.CharacteristicRef

	bytes *Completion[[]byte]
	ack   *Completion[struct{}]
	rssi  *Completion[int]
}

func newReadCommand(service, characteristic string, c *Completion[[]byte]) *Command {
	return &Command{Kind: CmdRead, Service: service, Characteristic: characteristic, bytes: c}
}

func newWriteCommand(service, characteristic string, data []byte, withResponse bool, c *Completion[struct{}]) *Command {
	kind := CmdWriteNoAck
	if withResponse {
		kind = CmdWrite
	}
	return &Command{
		Kind:           kind,
		Service:        service,
		Characteristic: characteristic,
		Data:           append([]byte(nil), data...),
		ack:            c,
	}
}

func newRegisterNotifyCommand(service, characteristic string, c *Completion[[]byte]) *Command {
	return &Command{Kind: CmdRegisterNotify, Service: service, Characteristic: characteristic, bytes: c}
}

func newRemoveNotifyCommand(service, characteristic string, c *Completion[struct{}]) *Command {
	return &Command{Kind: CmdRemoveNotify, Service: service, Characteristic: characteristic, ack: c}
}

func newSignalStrengthCommand(c *Completion[int]) *Command {
	return &Command{Kind: CmdReadSignalStrength, rssi: c}
}

// WithResponse reports whether a write command waits for the peripheral ack.
func (c *Command) WithResponse() bool {
	return c.Kind == CmdWrite
}

// Fail completes the command with err.
func (c *Command) Fail(err error) {
	switch {
	case c.bytes != nil:
		c.bytes.Fail(err)
	case c.ack != nil:
		c.ack.Fail(err)
	case c.rssi != nil:
		c.rssi.Fail(err)
	}
}

func (c *Command) String() string {
	if c.Kind == CmdReadSignalStrength {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s %s/%s", c.Kind, device.NormalizeUUID(c.Service), device.NormalizeUUID(c.Characteristic))
}
