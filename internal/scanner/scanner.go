// Package scanner discovers advertising peripherals and feeds every report
// into an Observer, usually the central registry.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/devicefactory"
	"github.com/srg/blelink/internal/ringchan"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// Observer receives every advertisement that passes the filters.
type Observer interface {
	Observe(adv device.Advertisement)
}

// EventType marks if the peripheral was newly discovered or updated
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

func (t EventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

type Event struct {
	Type        EventType
	Advertising *device.Advertising
}

// Options configures scanning behavior
type Options struct {
	Duration time.Duration
	// DuplicateFilter collapses repeated reports from the same peripheral.
	DuplicateFilter bool
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
}

// DefaultOptions returns default scanning options
func DefaultOptions() *Options {
	return &Options{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// Scanner handles BLE peripheral discovery
type Scanner struct {
	logger   *logrus.Logger
	observer Observer
	events   *ringchan.RingChannel[Event]
	now      func() time.Time

	mu    sync.Mutex
	opts  *Options
	found *orderedmap.OrderedMap[string, *device.Advertising]
}

// New creates a scanner. observer may be nil.
func New(logger *logrus.Logger, observer Observer) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		logger:   logger,
		observer: observer,
		events:   ringchan.New[Event](100),
		now:      time.Now,
		found:    orderedmap.New[string, *device.Advertising](),
	}
}

// Scan performs discovery until opts.Duration elapses or ctx ends, and
// returns the matching peripherals in first-seen order.
func (s *Scanner) Scan(ctx context.Context, opts *Options, progress ProgressCallback) ([]*device.Advertising, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if progress == nil {
		progress = func(string) {}
	}

	s.mu.Lock()
	s.opts = opts
	s.found = orderedmap.New[string, *device.Advertising]()
	s.mu.Unlock()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progress("Scanning")

	dev, err := devicefactory.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	err = dev.Scan(ctx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	progress("Processing results")
	results := s.Results()
	s.logger.WithField("device_count", len(results)).Info("BLE scan completed")
	return results, nil
}

// handleAdvertisement records a report and publishes the matching event.
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	address := device.NormalizeAddress(adv.Addr())
	if address == "" {
		return
	}

	s.mu.Lock()
	if !shouldInclude(adv, s.opts) {
		s.mu.Unlock()
		return
	}
	snapshot := device.NewAdvertising(adv, s.now())
	_, existing := s.found.Get(address)
	s.found.Set(address, snapshot)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.Observe(adv)
	}

	event := Event{Type: EventUpdated, Advertising: snapshot}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  snapshot.LocalName,
			"address": address,
			"rssi":    snapshot.RSSI,
		}).Info("Discovered new device")
	}
	s.events.ForceSend(event)
}

// shouldInclude applies the block, allow and service filters
func shouldInclude(adv device.Advertisement, opts *Options) bool {
	if opts == nil {
		return true
	}
	addr := device.NormalizeAddress(adv.Addr())

	for _, blocked := range opts.BlockList {
		if addr == device.NormalizeAddress(blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == device.NormalizeAddress(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(opts.ServiceUUIDs) > 0 {
		for _, required := range opts.ServiceUUIDs {
			for _, advertised := range adv.Services() {
				if device.SameUUID(required, advertised) {
					return true
				}
			}
		}
		return false
	}

	return true
}

// Results returns a snapshot of the discovered peripherals in first-seen order.
func (s *Scanner) Results() []*device.Advertising {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*device.Advertising, 0, s.found.Len())
	for pair := s.found.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Events returns a read-only channel of discovery events. Old events are
// dropped when nobody reads.
func (s *Scanner) Events() <-chan Event {
	return s.events.C()
}
