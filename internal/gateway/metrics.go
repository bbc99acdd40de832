// ABOUTME: Prometheus metrics for the gateway
// ABOUTME: Counters for submissions, rejections, chunks; gauge for active streams

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors
type Metrics struct {
	Submissions      *prometheus.CounterVec
	CreditRejections prometheus.Counter
	StreamChunks     prometheus.Counter
	ActiveStreams    prometheus.Gauge
}

// NewMetrics creates and registers the gateway metrics. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_submissions_total",
			Help: "Accepted message submissions by provider code",
		}, []string{"provider_code"}),
		CreditRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_credit_rejections_total",
			Help: "Submissions rejected by the credit ledger",
		}),
		StreamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_stream_chunks_total",
			Help: "Answer chunks rebroadcast to chat rooms",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_streams",
			Help: "Streams currently in flight",
		}),
	}
	reg.MustRegister(m.Submissions, m.CreditRejections, m.StreamChunks, m.ActiveStreams)
	return m
}
