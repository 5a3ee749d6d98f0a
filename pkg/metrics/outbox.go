package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher loop.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	terminal  *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	newVec := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      name,
			Help:      help,
		}, []string{"event_type"})
	}
	m := &OutboxMetrics{
		published: newVec("published_total", "Outbox events published."),
		failed:    newVec("publish_failures_total", "Retryable outbox publish failures."),
		terminal:  newVec("terminal_total", "Outbox events that will not be retried."),
	}
	reg.MustRegister(m.published, m.failed, m.terminal)
	return m
}

func (m *OutboxMetrics) Published(eventType string) { m.inc(m.published, eventType) }
func (m *OutboxMetrics) Failed(eventType string)    { m.inc(m.failed, eventType) }
func (m *OutboxMetrics) Terminal(eventType string)  { m.inc(m.terminal, eventType) }

func (m *OutboxMetrics) inc(vec *prometheus.CounterVec, eventType string) {
	if m == nil || vec == nil {
		return
	}
	vec.WithLabelValues(normalizeLabel(eventType)).Inc()
}
