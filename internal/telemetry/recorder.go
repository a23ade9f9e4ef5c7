// Package telemetry keeps the most recent thermometer readings of a session.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/peripheral"
	"github.com/srg/blelink/internal/protocol"
)

// MaxHistorySize sets an upper limit on the buffer size to guard against accidental misconfiguration.
const MaxHistorySize uint32 = 1024 * 1024

// Reading is one decoded measurement.
type Reading struct {
	Address  string    `json:"address"`
	Value    string    `json:"value"`
	Battery  int       `json:"battery"`
	Measured time.Time `json:"measured"`
	Received time.Time `json:"received"`
}

// Stats counts recorder traffic. Received minus Overwritten readings are
// still buffered or were drained.
type Stats struct {
	Received    int64 `json:"received"`
	Overwritten int64 `json:"overwritten"`
	Errors      int64 `json:"errors"`
	Sessions    int64 `json:"sessions"`
}

// Recorder is a peripheral listener that buffers readings in an overlapped
// ring buffer: when full, the oldest reading is replaced.
//
// All methods are thread-safe.
type Recorder struct {
	buffer mpmc.RichOverlappedRingBuffer[Reading]
	logger *logrus.Logger

	// Location interprets the device clock. Defaults to time.Local.
	Location *time.Location
	now      func() time.Time

	received    atomic.Int64
	overwritten atomic.Int64
	errors      atomic.Int64
	sessions    atomic.Int64
}

var (
	_ peripheral.Listener           = (*Recorder)(nil)
	_ peripheral.DisconnectListener = (*Recorder)(nil)
)

// NewRecorder creates a recorder holding at least size readings.
func NewRecorder(size uint32, logger *logrus.Logger) (*Recorder, error) {
	if size == 0 {
		return nil, fmt.Errorf("history size must be > 0")
	}
	if size > MaxHistorySize {
		return nil, fmt.Errorf("history size %d exceeds maximum %d", size, MaxHistorySize)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Recorder{
		buffer:   mpmc.NewOverlappedRingBuffer[Reading](size),
		logger:   logger,
		Location: time.Local,
		now:      time.Now,
	}, nil
}

func (r *Recorder) OnConnected(address string) {
	r.sessions.Add(1)
	r.logger.WithField("address", address).Debug("Telemetry session started")
}

func (r *Recorder) OnTelemetry(address string, t protocol.Telemetry) {
	reading := Reading{
		Address:  address,
		Value:    t.Reading(),
		Battery:  t.BatteryLevel(),
		Measured: t.Timestamp(r.Location),
		Received: r.now(),
	}

	overwrites, err := r.buffer.EnqueueM(reading)
	if err != nil {
		r.errors.Add(1)
		r.logger.WithError(err).WithField("address", address).Warn("Failed to record telemetry")
		return
	}
	r.received.Add(1)
	if overwrites > 0 {
		r.overwritten.Add(int64(overwrites))
	}
}

func (r *Recorder) OnDisconnected(address string, err error) {
	r.logger.WithFields(logrus.Fields{
		"address":  address,
		"error":    err,
		"received": r.received.Load(),
	}).Debug("Telemetry session ended")
}

// Drain removes and returns the buffered readings, oldest first.
func (r *Recorder) Drain() ([]Reading, error) {
	var out []Reading
	for !r.buffer.IsEmpty() {
		reading, err := r.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("buffer dequeue error: %w", err)
		}
		out = append(out, reading)
	}
	return out, nil
}

// Stats returns a snapshot of the counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Received:    r.received.Load(),
		Overwritten: r.overwritten.Load(),
		Errors:      r.errors.Load(),
		Sessions:    r.sessions.Load(),
	}
}
