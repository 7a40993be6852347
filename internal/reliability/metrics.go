package reliability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the reliability layer's Prometheus collectors. Grounded on
// the teacher's goWakuMetrics struct, promoted from a plain map-of-ints
// into real counters since this module's go.mod already carries
// prometheus/client_golang.
type Metrics struct {
	PublishAttempts prometheus.Counter
	Acks            prometheus.Counter
	Unacked         prometheus.Counter
	DedupDrops      prometheus.Counter
}

// NewMetrics builds a Metrics registered against reg. A nil registry
// builds unregistered (but still usable) collectors, useful for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2a_reliability_publish_attempts_total",
			Help: "Total reliable publish attempts, including retransmits.",
		}),
		Acks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2a_reliability_acks_total",
			Help: "Total reliable publishes that received an ack.",
		}),
		Unacked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2a_reliability_unacked_total",
			Help: "Total reliable publishes that exhausted retries without an ack.",
		}),
		DedupDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2a_reliability_dedup_drops_total",
			Help: "Total incoming payloads dropped as duplicates.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PublishAttempts, m.Acks, m.Unacked, m.DedupDrops)
	}
	return m
}
