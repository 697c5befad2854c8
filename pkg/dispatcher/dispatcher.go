package dispatcher

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

// Dispatching is the caller-facing API. Every method returns immediately;
// the work happens on the dispatcher's execution context.
type Dispatching interface {
	SetUserID(id *string)

	IsEnabled() bool
	// SetEnabled toggles the dispatcher as a whole. Sink flags are untouched.
	SetEnabled(enabled bool)
	// SetSinkEnabled toggles every sink registered under name.
	SetSinkEnabled(enabled bool, name events.SinkName)

	Send(name events.Name, body any)
	SendWith(name events.Name, body any, enc props.Encoder)
	SendEvent(e events.Event)
	SendTechnical(e events.TechnicalEvent)
	SendCustomizable(e events.CustomizableEvent)
}

const (
	kindPlain        = "plain"
	kindTechnical    = "technical"
	kindCustomizable = "customizable"
)

// Dispatcher fans events out to a fixed set of sinks.
type Dispatcher struct {
	sinks   []Sink
	exec    Executor
	queue   *SerialQueue // owned; nil when the executor was injected
	enabled atomic.Bool
	logger  zerolog.Logger
	onError func(error)
}

var _ Dispatching = (*Dispatcher)(nil)

// New builds a dispatcher over sinks, which are delivered to in order. A
// non-empty sink list must contain at least one technical sink; an empty
// list yields a dispatcher that delivers nothing.
func New(sinks []Sink, opts ...Option) (*Dispatcher, error) {
	sinks = compact(sinks)
	if len(sinks) > 0 && !hasTechnical(sinks) {
		return nil, ErrNoTechnicalSink
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		sinks:   sinks,
		onError: o.onError,
	}
	if o.logger != nil {
		d.logger = *o.logger
	} else {
		d.logger = log.Logger
	}
	d.logger = d.logger.With().Str("component", "dispatcher").Logger()

	if o.executor != nil {
		d.exec = o.executor
	} else {
		d.queue = NewSerialQueue(o.queueSize, d.logger)
		d.exec = d.queue
	}
	d.enabled.Store(!o.disabled)
	return d, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew(sinks []Sink, opts ...Option) *Dispatcher {
	d, err := New(sinks, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// compact copies sinks without nil entries.
func compact(sinks []Sink) []Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func hasTechnical(sinks []Sink) bool {
	for _, s := range sinks {
		if s.IsTechnical() {
			return true
		}
	}
	return false
}

func (d *Dispatcher) SetUserID(id *string) {
	operationsTotal.WithLabelValues("set_user_id").Inc()
	var value string
	set := id != nil
	if set {
		value = *id
	}
	d.exec.Async(func() {
		for _, s := range d.sinks {
			if !set {
				d.guard(s, func() { s.SetUserID(nil) })
				continue
			}
			v := value
			d.guard(s, func() { s.SetUserID(&v) })
		}
	})
}

func (d *Dispatcher) IsEnabled() bool { return d.enabled.Load() }

func (d *Dispatcher) SetEnabled(enabled bool) {
	operationsTotal.WithLabelValues("set_enabled").Inc()
	d.enabled.Store(enabled)
}

func (d *Dispatcher) SetSinkEnabled(enabled bool, name events.SinkName) {
	operationsTotal.WithLabelValues("set_sink_enabled").Inc()
	d.exec.Async(func() {
		for _, s := range d.sinks {
			if s.Name() == name {
				d.guard(s, func() { s.SetEnabled(enabled) })
			}
		}
	})
}

func (d *Dispatcher) Send(name events.Name, body any) {
	d.SendWith(name, body, nil)
}

// SendWith is Send with an explicit encoder; nil uses the body's own
// encoder or JSON.
func (d *Dispatcher) SendWith(name events.Name, body any, enc props.Encoder) {
	if !d.accept(kindPlain) {
		return
	}
	d.exec.Async(func() {
		p, err := props.CanonicalizeWith(body, props.RootKey(), enc)
		if err != nil {
			d.drop(&SerializationError{Kind: kindPlain, Name: name, Err: err})
			return
		}
		d.deliver(name, p, false)
	})
}

// SendEvent sends e with its own name. Events that also implement
// events.TechnicalEvent take the technical route.
func (d *Dispatcher) SendEvent(e events.Event) {
	if te, ok := e.(events.TechnicalEvent); ok {
		d.SendTechnical(te)
		return
	}
	d.SendWith(e.EventName(), events.BodyOf(e), nil)
}

// SendTechnical delivers e only to technical sinks.
func (d *Dispatcher) SendTechnical(e events.TechnicalEvent) {
	if !d.accept(kindTechnical) {
		return
	}
	name := e.EventName()
	d.exec.Async(func() {
		p, err := props.CanonicalizeWith(events.BodyOf(e), props.RootKey(), nil)
		if err != nil {
			d.drop(&SerializationError{Kind: kindTechnical, Name: name, Err: err})
			return
		}
		d.deliver(name, p, true)
	})
}

type delivery struct {
	sink  Sink
	name  events.Name
	props props.Properties
}

// SendCustomizable asks e for a per-sink name and body. A sink for which e
// returns nil is skipped. If any body fails to canonicalize, no sink
// receives the event.
func (d *Dispatcher) SendCustomizable(e events.CustomizableEvent) {
	if !d.accept(kindCustomizable) {
		return
	}
	d.exec.Async(func() {
		planned := make([]delivery, 0, len(d.sinks))
		for _, s := range d.sinks {
			if !s.IsEnabled() {
				skippedTotal.WithLabelValues(reasonSinkDisabled).Inc()
				continue
			}
			c := e.Customized(s.Name())
			if c == nil {
				skippedTotal.WithLabelValues(reasonCustomized).Inc()
				continue
			}
			p, err := props.CanonicalizeWith(c.Body, props.RootKey(), c.Encoder)
			if err != nil {
				d.drop(&SerializationError{Kind: kindCustomizable, Name: c.Name, Sink: s.Name(), Err: err})
				return
			}
			planned = append(planned, delivery{sink: s, name: c.Name, props: p})
		}
		for _, dl := range planned {
			d.sendTo(dl.sink, dl.name, dl.props)
		}
	})
}

func (d *Dispatcher) accept(kind string) bool {
	operationsTotal.WithLabelValues("send_" + kind).Inc()
	if !d.enabled.Load() {
		skippedTotal.WithLabelValues(reasonDisabled).Inc()
		return false
	}
	return true
}

// deliver runs on the execution context. Each sink gets its own copy of the
// top-level map.
func (d *Dispatcher) deliver(name events.Name, p props.Properties, technicalOnly bool) {
	for _, s := range d.sinks {
		if technicalOnly && !s.IsTechnical() {
			skippedTotal.WithLabelValues(reasonNotTechnical).Inc()
			continue
		}
		if !s.IsEnabled() {
			skippedTotal.WithLabelValues(reasonSinkDisabled).Inc()
			continue
		}
		d.sendTo(s, name, p.Clone())
	}
}

func (d *Dispatcher) sendTo(s Sink, name events.Name, p props.Properties) {
	if d.guard(s, func() { s.Send(name, p) }) {
		deliveriesTotal.WithLabelValues(string(s.Name())).Inc()
	}
}

// guard runs fn against a single sink so that a panicking sink cannot keep
// the others from being called. It reports whether fn returned normally.
func (d *Dispatcher) guard(s Sink, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sinkPanicsTotal.Inc()
			d.logger.Error().Str("sink", string(s.Name())).Str("panic", fmt.Sprint(r)).Msg("sink panicked")
			ok = false
		}
	}()
	fn()
	return true
}

func (d *Dispatcher) drop(err *SerializationError) {
	serializationFailuresTotal.WithLabelValues(err.Kind).Inc()
	ev := d.logger.Error().Err(err.Err).Str("kind", err.Kind).Str("event", string(err.Name))
	if err.Sink != "" {
		ev = ev.Str("sink", string(err.Sink))
	}
	ev.Msg("can't serialize event, dropped")
	if d.onError != nil {
		d.onError(err)
	}
}

// Sinks reports the registered sinks with their current flags.
func (d *Dispatcher) Sinks() []SinkInfo {
	out := make([]SinkInfo, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, SinkInfo{Name: s.Name(), Technical: s.IsTechnical(), Enabled: s.IsEnabled()})
	}
	return out
}

// Flush waits for everything submitted so far when the executor supports it.
func (d *Dispatcher) Flush() {
	if f, ok := d.exec.(interface{ Flush() }); ok {
		f.Flush()
	}
}

// Close drains and stops the dispatcher's own queue. Injected executors are
// left running.
func (d *Dispatcher) Close() {
	if d.queue != nil {
		d.queue.Close()
	}
}
