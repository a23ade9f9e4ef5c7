package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "peripheral", "service", "characteristic"
	UUIDs    []string // One or more identifiers (e.g., [address] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	// characteristic is in service
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	LinkUnavailable  ConnectionState = "link_unavailable"
	Disconnected     ConnectionState = "disconnected"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	// ErrNotConnected is returned for operations requested on a peripheral
	// that is not in the connected state.
	ErrNotConnected = &ConnectionError{State: NotConnected}
	// ErrAlreadyConnected is returned by transports asked to open a second link.
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	// ErrLinkUnavailable means the peripheral is nominally connected but has
	// no usable link object.
	ErrLinkUnavailable = &ConnectionError{State: LinkUnavailable}
	// ErrDisconnected completes every command flushed by a link loss or a
	// caller disconnect.
	ErrDisconnected = &ConnectionError{State: Disconnected, Msg: "peripheral disconnected"}
)

// TransportError reports a non-success status from the transport for a
// single attribute operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError for op. A nil err stays nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// Operation errors
var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrDiscoveryFailed = errors.New("service discovery failed")
	ErrRefreshFailed   = errors.New("service refresh failed")
	ErrBusy            = errors.New("transport busy")
	ErrBluetoothOff    = errors.New("bluetooth is turned off")
	ErrTimeout         = errors.New("timeout")
	ErrUnsupported     = errors.New("unsupported")
)

// InvalidAddressError builds the error returned for addresses that are
// neither a MAC nor a platform UUID.
func InvalidAddressError(address string) error {
	return fmt.Errorf("%w: %s is not a valid MAC address", ErrInvalidAddress, address)
}

// NormalizeError maps well-known transport error strings to the error taxonomy.
// Errors already in the taxonomy are returned untouched.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	case containsIgnoreCase(msg, "turned off"), containsIgnoreCase(msg, "powered off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ScanningDevice represents a BLE device capable of scanning for advertisements
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement is a single advertising report as delivered by the scanner.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool
	RSSI() int
	Addr() string
}
