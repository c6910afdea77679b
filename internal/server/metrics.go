package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pkoukos/argus/internal/sources"
)

// Metrics exposes the engine-level Prometheus series. It chains in front of
// the scheduler's budget recorder so every provider call increments both.
type Metrics struct {
	providerCalls *prometheus.CounterVec
	next          sources.CallRecorder
}

// NewMetrics registers the collectors on the default registry. The gauge
// callbacks are sampled at scrape time.
func NewMetrics(next sources.CallRecorder, cycleCount, openTrades, wsClients func() float64) *Metrics {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "argus_refresh_cycles",
		Help: "Lifetime refresh cycles run.",
	}, cycleCount)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "argus_open_paper_trades",
		Help: "Paper trades currently pending.",
	}, openTrades)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "argus_ws_clients",
		Help: "Connected WebSocket clients.",
	}, wsClients)

	return &Metrics{
		providerCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_provider_calls_total",
			Help: "Provider API calls issued, by provider.",
		}, []string{"provider"}),
		next: next,
	}
}

// Record implements sources.CallRecorder.
func (m *Metrics) Record(provider string, n int) {
	m.providerCalls.WithLabelValues(provider).Add(float64(n))
	if m.next != nil {
		m.next.Record(provider, n)
	}
}
