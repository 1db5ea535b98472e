package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts orchestration events. It satisfies the recorders expected
// by the store and the playback sequencer.
type Metrics struct {
	reminders *prometheus.CounterVec
	playback  *prometheus.CounterVec
	overrides *prometheus.CounterVec
}

// NewMetrics registers the companion counters on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "reminder_checks_total",
			Help:      "Reminder cycles by outcome or skip reason.",
		}, []string{"outcome"}),
		playback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "playback_sequences_total",
			Help:      "Playback sequences by outcome.",
		}, []string{"outcome"}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "overrides_set_total",
			Help:      "Presentation overrides installed, by facet.",
		}, []string{"facet"}),
	}
	reg.MustRegister(m.reminders, m.playback, m.overrides)
	return m
}

// ReminderChecked counts a reminder cycle
func (m *Metrics) ReminderChecked(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}

// PlaybackFinished counts a finished or abandoned playback sequence
func (m *Metrics) PlaybackFinished(outcome string) {
	m.playback.WithLabelValues(outcome).Inc()
}

// OverrideSet counts an installed override
func (m *Metrics) OverrideSet(facet string) {
	m.overrides.WithLabelValues(facet).Inc()
}
