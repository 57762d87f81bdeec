package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments the engine's dispatch and notification paths.
// As with transaction.Metrics, every method is nil-receiver-safe so
// instrumentation is opt-in.
type Metrics struct {
	RequestsDispatched prometheus.Counter
	ResponsesSent      prometheus.Counter
	Notifications      prometheus.Counter
	FramingErrors      prometheus.Counter
	SignalsProcessed   prometheus.Counter
}

// NewMetrics creates and registers engine-level metrics. Pass nil to
// build an unregistered Metrics for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_engine_requests_dispatched_total",
			Help: "Requests routed to a resource handler.",
		}),
		ResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_engine_responses_sent_total",
			Help: "Responses transmitted back to a peer.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_engine_notifications_total",
			Help: "Observe notifications delivered to subscribers.",
		}),
		FramingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_engine_framing_errors_total",
			Help: "Inbound messages dropped for failing to parse.",
		}),
		SignalsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_engine_signals_processed_total",
			Help: "Class-7 signaling messages processed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsDispatched, m.ResponsesSent, m.Notifications, m.FramingErrors, m.SignalsProcessed)
	}
	return m
}

func (m *Metrics) dispatched() {
	if m == nil {
		return
	}
	m.RequestsDispatched.Inc()
}

func (m *Metrics) responded() {
	if m == nil {
		return
	}
	m.ResponsesSent.Inc()
}

func (m *Metrics) notified() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}

func (m *Metrics) framingError() {
	if m == nil {
		return
	}
	m.FramingErrors.Inc()
}

func (m *Metrics) signaled() {
	if m == nil {
		return
	}
	m.SignalsProcessed.Inc()
}
