package transaction

import "github.com/prometheus/client_golang/prometheus"

// Metrics provides Prometheus instrumentation for the unreliable
// transaction table. Every method follows the nil-receiver pattern (as
// in marmos91/dittofs's internal/adapter/nsm.Metrics): a nil *Metrics
// is safe to call into and simply does nothing, so instrumentation can
// be wired in only where an embedder wants it.
type Metrics struct {
	Submits        prometheus.Counter
	Retransmits    prometheus.Counter
	Timeouts       prometheus.Counter
	Cancellations  prometheus.Counter
	Successes      prometheus.Counter
	SlotsExhausted prometheus.Counter
}

// NewMetrics creates and registers transaction-table metrics. Pass nil
// to build an unregistered Metrics (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_submits_total",
			Help: "Confirmable requests submitted for tracking.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_retransmits_total",
			Help: "Retransmissions sent due to unacknowledged confirmable requests.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_timeouts_total",
			Help: "Transactions that exhausted their retry budget or hard deadline.",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_cancellations_total",
			Help: "Transactions canceled before completion.",
		}),
		Successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_successes_total",
			Help: "Transactions resolved by a matching response.",
		}),
		SlotsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coap_transaction_no_free_slots_total",
			Help: "Allocate calls that failed because the table was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Submits, m.Retransmits, m.Timeouts, m.Cancellations, m.Successes, m.SlotsExhausted)
	}
	return m
}

func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.Submits.Inc()
}

func (m *Metrics) Retransmitted() {
	if m == nil {
		return
	}
	m.Retransmits.Inc()
}

func (m *Metrics) TimedOut() {
	if m == nil {
		return
	}
	m.Timeouts.Inc()
}

func (m *Metrics) Canceled() {
	if m == nil {
		return
	}
	m.Cancellations.Inc()
}

func (m *Metrics) Succeeded() {
	if m == nil {
		return
	}
	m.Successes.Inc()
}

func (m *Metrics) NoFreeSlots() {
	if m == nil {
		return
	}
	m.SlotsExhausted.Inc()
}
