package sinks

import (
	"github.com/prometheus/client_golang/prometheus"

	"eventd/pkg/events"
	"eventd/pkg/props"
)

// Prometheus counts events by name. It stands in for a product analytics
// backend and is not technical by default.
type Prometheus struct {
	Base
	events *prometheus.CounterVec
	users  prometheus.Gauge
}

// NewPrometheus registers the sink's collectors on reg. Two Prometheus sinks
// on the same registerer need different names.
func NewPrometheus(reg prometheus.Registerer, opts Options) (*Prometheus, error) {
	p := &Prometheus{}
	opts.apply(&p.Base, "prometheus", false)
	labels := prometheus.Labels{"sink": string(p.Name())}

	p.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "eventd",
			Subsystem:   "sink",
			Name:        "events_total",
			Help:        "Events received by a prometheus sink, by event name",
			ConstLabels: labels,
		},
		[]string{"event"},
	)
	p.users = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "eventd",
			Subsystem:   "sink",
			Name:        "user_identified",
			Help:        "1 while a user id is set on the sink",
			ConstLabels: labels,
		},
	)
	if err := reg.Register(p.events); err != nil {
		return nil, err
	}
	if err := reg.Register(p.users); err != nil {
		reg.Unregister(p.events)
		return nil, err
	}
	return p, nil
}

func (p *Prometheus) Send(name events.Name, _ props.Properties) {
	p.events.WithLabelValues(string(name)).Inc()
}

func (p *Prometheus) SetUserID(id *string) {
	if id == nil {
		p.users.Set(0)
		return
	}
	p.users.Set(1)
}

// Collectors exposes the sink's metrics, mainly for tests.
func (p *Prometheus) Collectors() (*prometheus.CounterVec, prometheus.Gauge) {
	return p.events, p.users
}
