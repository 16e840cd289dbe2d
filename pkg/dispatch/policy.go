package dispatch

import "github.com/dmitrymomot/courier/pkg/channel"

// Mode decides who performs the first transmission of a delivery.
type Mode int

const (
	// Deferred rows are left pending for the worker.
	Deferred Mode = iota
	// Synchronous rows are sent by the dispatcher right after fan-out.
	Synchronous
)

func (m Mode) String() string {
	if m == Synchronous {
		return "synchronous"
	}
	return "deferred"
}

// Policy maps channel types to a Mode. Types not listed are Deferred.
type Policy map[channel.Type]Mode

// DefaultPolicy sends in-app notifications inline; they have no external
// transmission step.
func DefaultPolicy() Policy {
	return Policy{channel.TypeInApp: Synchronous}
}

func (p Policy) mode(t channel.Type) Mode {
	return p[t]
}
