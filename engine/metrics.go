package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	proverif "github.com/sbaloglu/proverif-codes"
	"github.com/sbaloglu/proverif-codes/relation"
)

// defines prometheus metrics
var (
	promSteps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proverif_engine_steps_total",
		Help: "total number of executed schedule steps",
	})

	promEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proverif_engine_events_total",
		Help: "total number of emitted event occurrences",
	})

	promInserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proverif_engine_inserts_total",
		Help: "total number of rows inserted per table",
	}, []string{"table"})

	promInadmissible = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proverif_engine_inadmissible_total",
		Help: "total number of sessions aborted by a restriction",
	})
)

func init() {
	proverif.PromCollectors = append(proverif.PromCollectors,
		promSteps, promEvents, promInserts, promInadmissible)
}

// insertObserver feeds the insertion counter from the store notifications.
//
// - implements core.Observer
type insertObserver struct{}

// NotifyCallback implements core.Observer.
func (insertObserver) NotifyCallback(evt relation.InsertEvent) {
	promInserts.WithLabelValues(evt.Table).Inc()
}
