// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	commands      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	procedures    *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcehive",
			Name:      "commands_total",
			Help:      "Command API invocations by operation and error kind.",
		}, []string{"op", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcehive",
			Name:      "item_transitions_total",
			Help:      "Request item state transitions.",
		}, []string{"kind", "event"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcehive",
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "result"}),
		procedures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcehive",
			Name:      "procedure_runs_total",
			Help:      "Sweep and maintenance procedure runs.",
		}, []string{"procedure", "result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resourcehive",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one scheduler tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.commands, m.transitions, m.notifications, m.procedures, m.sweepDuration)
	return m
}

// Nop returns collectors registered nowhere
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Command(op, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Transition(kind, event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, event).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Procedure(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.procedures.WithLabelValues(name, result).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
