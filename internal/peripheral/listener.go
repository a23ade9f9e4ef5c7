package peripheral

import (
	"slices"
	"sync"

	"github.com/srg/blelink/internal/protocol"
)

// Listener receives lifecycle and telemetry events of a peripheral. Callbacks
// run on the peripheral worker and must not block.
type Listener interface {
	OnConnected(address string)
	OnTelemetry(address string, t protocol.Telemetry)
}

// DisconnectListener is optionally implemented by listeners interested in
// link loss and caller disconnects.
type DisconnectListener interface {
	OnDisconnected(address string, err error)
}

// ListenerFuncs adapts plain functions to Listener and DisconnectListener.
// Nil fields are skipped.
type ListenerFuncs struct {
	Connected    func(address string)
	Telemetry    func(address string, t protocol.Telemetry)
	Disconnected func(address string, err error)
}

func (f ListenerFuncs) OnConnected(address string) {
	if f.Connected != nil {
		f.Connected(address)
	}
}

func (f ListenerFuncs) OnTelemetry(address string, t protocol.Telemetry) {
	if f.Telemetry != nil {
		f.Telemetry(address, t)
	}
}

func (f ListenerFuncs) OnDisconnected(address string, err error) {
	if f.Disconnected != nil {
		f.Disconnected(address, err)
	}
}

type listenerSet struct {
	mu     sync.RWMutex
	nextID uint64
	items  map[uint64]Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{items: make(map[uint64]Listener)}
}

func (s *listenerSet) add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.items[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.items, id)
		})
	}
}

// snapshot returns listeners in registration order.
func (s *listenerSet) snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.items[id]
	}
	return out
}

func (s *listenerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
