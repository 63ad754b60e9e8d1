package connector

import "github.com/lion187chen/socketcan-hil/simevent"

// Adapter is implemented by every connector attached to the simulation,
// whatever its transport.
type Adapter interface {
	Name() string
	// Operations lists the outbound event operations the adapter accepts.
	Operations() []string
	HandleOutboundEvent(ev simevent.Event)
	Close() error
}
