// Package protocol decodes and encodes the vendor frames exchanged with the
// thermometer over its telemetry characteristic.
//
// Every frame starts with a fixed header and device class, followed by a
// big-endian length and a command byte:
//
//	offset 0    header       0x4D
//	offset 1    device class 0xFC
//	offset 2-3  length       bytes after the length field, checksum included
//	offset 4    command      0xA1 clock sync, 0xA3 sequence ack, else telemetry
//	offset 5..  payload
//	last        checksum
//
// The device expects fixed checksum values in the replies it accepts, so the
// encoders emit those constants rather than computing a sum.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Header      byte = 0x4D
	DeviceClass byte = 0xFC

	CmdClockSync   byte = 0xA1
	CmdSequenceAck byte = 0xA3

	// ControlMode is sent with every clock sync reply: buzzer, date format,
	// backlight and unit bits as the device expects them.
	ControlMode byte = 0x07

	ClockSyncChecksum   byte = 0x3E
	SequenceAckChecksum byte = 0xBB
)

const (
	commandOffset = 4
	telemetrySize = 8
	ackSize       = 8
)

// ErrShortFrame is returned when a frame is too short to hold the bytes its
// command needs.
var ErrShortFrame = errors.New("frame too short")

// Message is one decoded frame: ClockSyncRequest, SequenceAckRequest or Telemetry.
type Message interface {
	Command() byte
}

// ClockSyncRequest asks the host for its wall clock.
type ClockSyncRequest struct{}

func (ClockSyncRequest) Command() byte { return CmdClockSync }

// SequenceAckRequest asks the host to acknowledge a record counter.
type SequenceAckRequest struct {
	High byte
	Low  byte
}

func (SequenceAckRequest) Command() byte { return CmdSequenceAck }

// Counter returns the acknowledged record counter.
func (r SequenceAckRequest) Counter() uint16 {
	return binary.BigEndian.Uint16([]byte{r.High, r.Low})
}

// Telemetry is a measurement report. Field positions are the first eight
// bytes of the raw frame.
type Telemetry struct {
	Year      byte
	Month     byte
	Day       byte
	Hour      byte
	Minute    byte
	Primary   byte
	Secondary byte
	Battery   byte
	// Code is the byte found in the command position.
	Code byte
}

func (t Telemetry) Command() byte { return t.Code }

// BatteryLevel returns the coarse battery indicator the device firmware
// reports, (raw+100)/100 in integer arithmetic.
func (t Telemetry) BatteryLevel() int {
	return (int(t.Battery) + 100) / 100
}

// Reading renders the measurement as "<primary>.<secondary>".
func (t Telemetry) Reading() string {
	return fmt.Sprintf("%d.%d", t.Primary, t.Secondary)
}

// Timestamp returns the device-reported time in loc, assuming a 20xx year.
func (t Telemetry) Timestamp(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(2000+int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Minute), 0, 0, loc)
}

// Decode classifies a raw notification payload.
//
// Any command byte other than clock sync or sequence ack is decoded as
// telemetry; the device does not tag its measurement frames.
func Decode(frame []byte) (Message, error) {
	if len(frame) <= commandOffset {
		return nil, fmt.Errorf("%w: %d bytes, need command at offset %d", ErrShortFrame, len(frame), commandOffset)
	}

	switch frame[commandOffset] {
	case CmdClockSync:
		return ClockSyncRequest{}, nil
	case CmdSequenceAck:
		if len(frame) < ackSize {
			return nil, fmt.Errorf("%w: sequence ack has %d bytes, need %d", ErrShortFrame, len(frame), ackSize)
		}
		return SequenceAckRequest{High: frame[6], Low: frame[7]}, nil
	default:
		if len(frame) < telemetrySize {
			return nil, fmt.Errorf("%w: telemetry has %d bytes, need %d", ErrShortFrame, len(frame), telemetrySize)
		}
		return Telemetry{
			Year:      frame[0],
			Month:     frame[1],
			Day:       frame[2],
			Hour:      frame[3],
			Minute:    frame[4],
			Primary:   frame[5],
			Secondary: frame[6],
			Battery:   frame[7],
			Code:      frame[commandOffset],
		}, nil
	}
}

// EncodeClockSyncReply builds the 12-byte reply carrying t as
// year-in-century, month, day, hour and minute.
func EncodeClockSyncReply(t time.Time) []byte {
	return newFrame(CmdClockSync, ClockSyncChecksum,
		byte(t.Year()%100),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		ControlMode,
	)
}

// EncodeSequenceAck builds the 8-byte acknowledgement echoing the counter bytes.
func EncodeSequenceAck(high, low byte) []byte {
	return newFrame(CmdSequenceAck, SequenceAckChecksum, high, low)
}

// Reply returns the frame the host must write back for msg, if any.
func Reply(msg Message, now time.Time) ([]byte, bool) {
	switch m := msg.(type) {
	case ClockSyncRequest:
		return EncodeClockSyncReply(now), true
	case SequenceAckRequest:
		return EncodeSequenceAck(m.High, m.Low), true
	default:
		return nil, false
	}
}

// Hex renders a frame as space separated upper-case hex octets.
func Hex(frame []byte) string {
	var sb strings.Builder
	for i, b := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func newFrame(cmd, checksum byte, payload ...byte) []byte {
	frame := make([]byte, commandOffset+1+len(payload)+1)
	frame[0] = Header
	frame[1] = DeviceClass
	binary.BigEndian.PutUint16(frame[2:commandOffset], uint16(len(frame)-commandOffset))
	frame[commandOffset] = cmd
	copy(frame[commandOffset+1:], payload)
	frame[len(frame)-1] = checksum
	return frame
}
