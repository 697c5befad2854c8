// Package events defines the identities and event kinds accepted by the
// dispatcher.
package events

import (
	"reflect"

	"eventd/pkg/props"
)

// Name identifies an event kind. It is used both as a map key and as the
// value sinks put on the wire.
type Name string

func (n Name) String() string { return string(n) }

// SinkName identifies a sink for routing: per-sink enable/disable and
// per-sink customization.
type SinkName string

func (n SinkName) String() string { return string(n) }

// SinkNameFor derives a stable name from the dynamic type of v, e.g.
// "eventd/pkg/sinks.Console". Pointer types resolve to their element type.
func SinkNameFor(v any) SinkName {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return SinkName(t.String())
	}
	return SinkName(t.PkgPath() + "." + t.Name())
}

// Event is a product event. The value itself is the body that gets
// canonicalized.
type Event interface {
	EventName() Name
}

// TechnicalEvent is delivered only to sinks that report IsTechnical.
type TechnicalEvent interface {
	EventName() Name
	// TechnicalEvent is a marker.
	TechnicalEvent()
}

// CustomizableEvent computes its outgoing name and body per sink. Returning
// nil skips that sink.
type CustomizableEvent interface {
	Customized(sink SinkName) *Customized
}

// Customized is the per-sink result of a CustomizableEvent.
type Customized struct {
	Name Name
	Body any
	// Encoder overrides the default JSON encoder. Optional.
	Encoder props.Encoder
}

// Dynamic is an Event built at runtime rather than declared as a type, e.g.
// from an HTTP request.
type Dynamic struct {
	name Name
	body any
}

// New returns an Event named name whose body is body.
func New(name Name, body any) Dynamic { return Dynamic{name: name, body: body} }

func (d Dynamic) EventName() Name { return d.name }

func (d Dynamic) Body() any { return d.body }

// Technical is the TechnicalEvent counterpart of Dynamic.
type Technical struct {
	Dynamic
}

// NewTechnical returns a TechnicalEvent named name whose body is body.
func NewTechnical(name Name, body any) Technical { return Technical{Dynamic: New(name, body)} }

func (Technical) TechnicalEvent() {}

// Bodied is implemented by events whose body is not the event value itself.
type Bodied interface {
	Body() any
}

// BodyOf returns the value to canonicalize for e.
func BodyOf(e any) any {
	if b, ok := e.(Bodied); ok {
		return b.Body()
	}
	return e
}
