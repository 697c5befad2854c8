// Package sinks provides dispatcher.Sink implementations: a zerolog console,
// an in-memory recorder, a JSON-lines file writer and a prometheus counter.
package sinks

import (
	"sync/atomic"

	"eventd/pkg/events"
)

// Base carries the name and the concurrency-safe flags every sink needs.
// Embed it and call Init before use.
type Base struct {
	name      events.SinkName
	technical atomic.Bool
	enabled   atomic.Bool
}

// Init names the sink and enables it.
func (b *Base) Init(name events.SinkName, technical bool) {
	b.name = name
	b.technical.Store(technical)
	b.enabled.Store(true)
}

func (b *Base) Name() events.SinkName { return b.name }

func (b *Base) IsTechnical() bool { return b.technical.Load() }

func (b *Base) SetTechnical(technical bool) { b.technical.Store(technical) }

func (b *Base) IsEnabled() bool { return b.enabled.Load() }

func (b *Base) SetEnabled(enabled bool) { b.enabled.Store(enabled) }

// Options are the settings shared by the constructors in this package. Nil
// pointers keep the sink's default.
type Options struct {
	Name      events.SinkName
	Technical *bool
	Disabled  bool
}

func (o Options) apply(b *Base, defName events.SinkName, defTechnical bool) {
	name := o.Name
	if name == "" {
		name = defName
	}
	technical := defTechnical
	if o.Technical != nil {
		technical = *o.Technical
	}
	b.Init(name, technical)
	if o.Disabled {
		b.SetEnabled(false)
	}
}
