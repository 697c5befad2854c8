package dispatcher

import (
	"errors"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

// ErrNoTechnicalSink is returned by New when sinks are registered but none of
// them accepts technical events.
var ErrNoTechnicalSink = errors.New("dispatcher: at least one technical sink is required")

// IsNoTechnicalSink reports whether err is ErrNoTechnicalSink.
func IsNoTechnicalSink(err error) bool { return errors.Is(err, ErrNoTechnicalSink) }

// SerializationError is reported to the error handler when an event is
// dropped because its body could not be canonicalized.
type SerializationError struct {
	Kind string
	Name events.Name
	// Sink is set for customizable events, whose bodies are per sink.
	Sink events.SinkName
	Err  error
}

func (e *SerializationError) Error() string {
	msg := "dispatcher: can't serialize " + e.Kind + " event"
	if e.Name != "" {
		msg += " " + string(e.Name)
	}
	if e.Sink != "" {
		msg += " for sink " + string(e.Sink)
	}
	return msg + ": " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IsSerialization reports whether err describes a dropped event.
func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se) || props.IsEncodeError(err)
}
