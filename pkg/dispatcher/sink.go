package dispatcher

import (
	"eventd/pkg/events"
	"eventd/pkg/props"
)

// Sink is a delivery target registered with a Dispatcher.
//
// The dispatcher calls every method from its single worker while other
// goroutines may flip the flags, so IsEnabled, IsTechnical and SetEnabled
// must be safe for concurrent use. Send must not block indefinitely: a slow
// sink stalls delivery for every other sink.
type Sink interface {
	Name() events.SinkName
	IsTechnical() bool
	IsEnabled() bool
	// Send delivers one event. Failures stay inside the sink.
	Send(name events.Name, properties props.Properties)
	// SetUserID propagates the current user; nil clears it.
	SetUserID(id *string)
	SetEnabled(enabled bool)
}

// SinkInfo is a point-in-time view of a registered sink.
type SinkInfo struct {
	Name      events.SinkName `json:"name"`
	Technical bool            `json:"technical"`
	Enabled   bool            `json:"enabled"`
}
