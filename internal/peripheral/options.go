package peripheral

import (
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/srg/blelink/internal/device"
)

// Options tunes a Peripheral. Zero values are replaced by the defaults below.
type Options struct {
	// TelemetryService and TelemetryCharacteristic identify the characteristic
	// whose notifications carry protocol frames. It is subscribed
	// automatically after every successful discovery.
	TelemetryService        string `default:"0000fff0-0000-1000-8000-00805f9b34fb"`
	TelemetryCharacteristic string `default:"0000fff1-0000-1000-8000-00805f9b34fb"`

	// InboxSize bounds the worker inbox shared by callers and transport events.
	InboxSize int `default:"64"`
	// StreamBuffer bounds every completion stream; the oldest outcome is
	// dropped when a consumer falls behind.
	StreamBuffer int `default:"16"`

	// Now supplies the wall clock for clock sync replies.
	Now func() time.Time
}

// DefaultOptions returns Options with every default applied.
func DefaultOptions() Options {
	opts := Options{}
	defaults.SetDefaults(&opts)
	opts.Now = time.Now
	return opts
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TelemetryService == "" {
		o.TelemetryService = d.TelemetryService
	}
	if o.TelemetryCharacteristic == "" {
		o.TelemetryCharacteristic = d.TelemetryCharacteristic
	}
	if o.InboxSize <= 0 {
		o.InboxSize = d.InboxSize
	}
	if o.StreamBuffer <= 0 {
		o.StreamBuffer = d.StreamBuffer
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

func (o Options) isTelemetry(ref device.CharacteristicRef) bool {
	return device.SameUUID(ref.Service, o.TelemetryService) &&
		device.SameUUID(ref.Characteristic, o.TelemetryCharacteristic)
}
