// Package device defines the transport-facing vocabulary shared by the
// peripheral manager and its transports: link states, characteristic
// references, discovered topology, the Transport/Link/EventSink contract and
// the error taxonomy every completion reports through.
package device
