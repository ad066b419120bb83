// Package metrics holds the Prometheus collectors of the contribution engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics tracks command handling, the event log and downstream relays.
type Metrics struct {
	Commands         *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	EventsAppended   prometheus.Counter
	EventsRelayed    *prometheus.CounterVec
	RelayErrors      *prometheus.CounterVec
	RelayOffset      *prometheus.GaugeVec
	ActiveAggregates prometheus.Gauge
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contrib_commands_total",
			Help: "Contributor commands handled, by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contrib_command_duration_seconds",
			Help:    "Time from command receipt to reply, log append included",
			Buckets: latencyBuckets,
		}, []string{"command"}),
		EventsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "contrib_events_appended_total",
			Help: "Events appended to the contributor log",
		}),
		EventsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contrib_events_relayed_total",
			Help: "Committed events handed to a downstream consumer",
		}, []string{"consumer", "tag"}),
		RelayErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contrib_relay_errors_total",
			Help: "Downstream consumer failures, retried on the next poll",
		}, []string{"consumer", "tag"}),
		RelayOffset: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "contrib_relay_offset",
			Help: "Last log offset acknowledged by a downstream consumer",
		}, []string{"consumer", "tag"}),
		ActiveAggregates: f.NewGauge(prometheus.GaugeOpts{
			Name: "contrib_active_aggregates",
			Help: "Contributors with state loaded in memory",
		}),
	}
}

// ObserveCommand records one handled command.
func (m *Metrics) ObserveCommand(command, outcome string, start time.Time) {
	m.Commands.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// AddEventsAppended counts events written to the log.
func (m *Metrics) AddEventsAppended(n int) {
	m.EventsAppended.Add(float64(n))
}

// AggregateLoaded bumps the loaded-aggregate gauge.
func (m *Metrics) AggregateLoaded() {
	m.ActiveAggregates.Inc()
}

// ObserveRelay records a batch handed to consumer and its new offset.
func (m *Metrics) ObserveRelay(consumer, tag string, n int, offset int64) {
	m.EventsRelayed.WithLabelValues(consumer, tag).Add(float64(n))
	m.RelayOffset.WithLabelValues(consumer, tag).Set(float64(offset))
}

// RelayFailed counts a failed delivery.
func (m *Metrics) RelayFailed(consumer, tag string) {
	m.RelayErrors.WithLabelValues(consumer, tag).Inc()
}
