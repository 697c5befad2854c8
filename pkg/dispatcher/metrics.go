package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Skip reasons.
const (
	reasonDisabled     = "dispatcher_disabled"
	reasonSinkDisabled = "sink_disabled"
	reasonNotTechnical = "not_technical"
	reasonCustomized   = "customized_out"
	reasonClosed       = "closed"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "operations_total",
			Help:      "Operations submitted to dispatchers",
		},
		[]string{"op"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "deliveries_total",
			Help:      "Events handed to sinks",
		},
		[]string{"sink"},
	)

	skippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "skipped_total",
			Help:      "Deliveries or operations skipped, by reason",
		},
		[]string{"reason"},
	)

	serializationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "serialization_failures_total",
			Help:      "Events dropped because their body could not be canonicalized",
		},
		[]string{"kind"},
	)

	sinkPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "sink_panics_total",
			Help:      "Sink calls and queue tasks that panicked",
		},
	)

	queuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "eventd",
			Subsystem: "dispatcher",
			Name:      "queue_pending",
			Help:      "Tasks queued or running across serial queues",
		},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal, deliveriesTotal, skippedTotal, serializationFailuresTotal, sinkPanicsTotal, queuePending)
}
