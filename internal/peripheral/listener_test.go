package peripheral

import (
	"testing"

	"github.com/srg/blelink/internal/protocol"
	"github.com/stretchr/testify/assert"
)

type namedListener string

func (namedListener) OnConnected(string) {}
func (namedListener) OnTelemetry(string, protocol.Telemetry) {}

func names(ls []Listener) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, string(l.(namedListener)))
	}
	return out
}

func TestListenerSetOrder(t *testing.T) {
	s := newListenerSet()
	removeA := s.add(namedListener("a"))
	s.add(namedListener("b"))
	removeC := s.add(namedListener("c"))
	for i := 0; i < 16; i++ {
		s.add(namedListener("x")) // spread the map over several buckets
	}

	got := names(s.snapshot())
	assert.Equal(t, []string{"a", "b", "c"}, got[:3], "listeners MUST be returned in registration order")

	removeA()
	removeC()
	removeC()
	s.add(namedListener("d"))

	got = names(s.snapshot())
	assert.Len(t, got, 18)
	assert.Equal(t, "b", got[0])
	assert.Equal(t, "d", got[len(got)-1], "a late listener MUST come last")
}
