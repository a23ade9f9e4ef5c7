package device

import (
	"fmt"
	"strings"
)

// LinkState is the lifecycle state of a peripheral link.
type LinkState int

const (
	StateDisconnected LinkState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s LinkState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

// Property is the GATT characteristic property bit set.
type Property uint8

const (
	PropRead Property = 1 << iota
	PropWrite
	PropWriteNoResponse
	PropNotify
	PropIndicate
)

var propertyNames = []struct {
	flag Property
	name string
}{
	{PropRead, "read"},
	{PropWrite, "write"},
	{PropWriteNoResponse, "write-without-response"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
}

// Has reports whether every bit of flag is set.
func (p Property) Has(flag Property) bool {
	return p&flag == flag
}

func (p Property) String() string {
	parts := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p.Has(pn.flag) {
			parts = append(parts, pn.name)
		}
	}
	return strings.Join(parts, ",")
}

// CharacteristicRef locates one characteristic instance on a link. Instance
// is the attribute handle reported by the transport, so two characteristics
// sharing a UUID inside one service remain distinct.
type CharacteristicRef struct {
	Service        string
	Characteristic string
	Instance       uint16
}

// Key is the registry key "service|characteristic|instance".
func (r CharacteristicRef) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.Service, r.Characteristic, r.Instance)
}

func (r CharacteristicRef) String() string {
	return r.Key()
}

// Transport opens links to peripherals. Implementations never block the
// caller on radio activity: results arrive through the EventSink.
type Transport interface {
	OpenLink(address string, auto bool, sink EventSink) (Link, error)
}

// Link is a single transport connection. At most one attribute operation may
// be outstanding; a second one is refused with ErrBusy. Each method only
// starts the operation, its outcome is reported to the link's EventSink.
type Link interface {
	Address() string
	Close() error
	DiscoverTopology() error
	ReadAttribute(ref CharacteristicRef) error
	WriteAttribute(ref CharacteristicRef, data []byte, withResponse bool) error
	SetNotifyEnabled(ref CharacteristicRef, enabled bool) error
	ReadSignalStrength() error
	RequestMTU(mtu int) error
}

// TopologyRefresher is implemented by links able to drop their cached
// attribute table so the next discovery re-reads it from the peripheral.
type TopologyRefresher interface {
	RefreshTopology() error
}

// EventSink receives every asynchronous transport event for one link.
type EventSink interface {
	LinkEstablished()
	LinkLost(err error)
	TopologyDiscovered(topology *Topology, err error)
	AttributeRead(ref CharacteristicRef, data []byte, err error)
	AttributeWritten(ref CharacteristicRef, err error)
	NotifyConfigured(ref CharacteristicRef, enabled bool, err error)
	SignalStrengthRead(rssi int, err error)
	AttributeChanged(ref CharacteristicRef, data []byte)
	MTUChanged(mtu int, err error)
}
