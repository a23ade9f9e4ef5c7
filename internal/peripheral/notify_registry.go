package peripheral

import "github.com/srg/blelink/internal/device"

// NotificationRegistry maps characteristic instances to the standing
// subscription stream that receives their notifications. At most one stream
// is live per key. Owned by the peripheral worker.
type NotificationRegistry struct {
	entries map[string]*Completion[[]byte]
}

// NewNotificationRegistry returns an empty registry.
func NewNotificationRegistry() *NotificationRegistry {
	return &NotificationRegistry{entries: make(map[string]*Completion[[]byte])}
}

// Register stores handle under ref, closing any stream it replaces.
func (r *NotificationRegistry) Register(ref device.CharacteristicRef, handle *Completion[[]byte]) {
	key := ref.Key()
	if prev, ok := r.entries[key]; ok && prev != handle {
		prev.Close()
	}
	r.entries[key] = handle
}

// Unregister removes and returns the stream registered under ref.
func (r *NotificationRegistry) Unregister(ref device.CharacteristicRef) (*Completion[[]byte], bool) {
	key := ref.Key()
	handle, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return handle, ok
}

// Lookup returns the stream registered under ref.
func (r *NotificationRegistry) Lookup(ref device.CharacteristicRef) (*Completion[[]byte], bool) {
	handle, ok := r.entries[ref.Key()]
	return handle, ok
}

// Len returns the number of registrations.
func (r *NotificationRegistry) Len() int {
	return len(r.entries)
}

// Clear fails every registered stream with err and empties the registry.
func (r *NotificationRegistry) Clear(err error) int {
	n := len(r.entries)
	for key, handle := range r.entries {
		handle.Fail(err)
		delete(r.entries, key)
	}
	return n
}
