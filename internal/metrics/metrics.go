package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personsvc_mutations_total",
			Help: "Person mutations by operation and outcome",
		},
		[]string{"op", "outcome"}, // create|update|delete , ok|error
	)

	OutboxEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personsvc_outbox_events_total",
			Help: "Outbox relay attempts by result and event name",
		},
		[]string{"result", "event_name"}, // published|errored , created|updated|deleted
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MutationsTotal,
		OutboxEventsTotal,
	)
}
