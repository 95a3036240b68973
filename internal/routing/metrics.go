package routing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the routing Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	postsObserved     *prometheus.CounterVec
	unitsRouted       *prometheus.CounterVec
	sends             *prometheus.CounterVec
	approvalFallbacks prometheus.Counter
	pendingEvictions  prometheus.Counter
	pendingItems      prometheus.Gauge
}

// NewMetrics creates the routing collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		postsObserved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topicrelay_posts_observed_total",
				Help: "Source channel posts observed, by aggregator action",
			},
			[]string{"action"},
		),
		unitsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topicrelay_units_routed_total",
				Help: "Units dispatched, by routing mode and topic",
			},
			[]string{"mode", "topic"},
		),
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topicrelay_sends_total",
				Help: "Outbound sends, by content kind and status",
			},
			[]string{"kind", "status"},
		),
		approvalFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "topicrelay_approval_fallbacks_total",
				Help: "Manual-mode units routed automatically because the approval request failed",
			},
		),
		pendingEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "topicrelay_pending_evictions_total",
				Help: "Pending items evicted by TTL or capacity",
			},
		),
		pendingItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "topicrelay_pending_items",
				Help: "Units waiting for a topic decision",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.postsObserved, m.unitsRouted, m.sends, m.approvalFallbacks, m.pendingEvictions, m.pendingItems)
	}
	return m
}

func (m *Metrics) observePost(action Action) {
	if m == nil {
		return
	}
	m.postsObserved.WithLabelValues(action.String()).Inc()
}

func (m *Metrics) observeRouted(mode Mode, topic string) {
	if m == nil {
		return
	}
	m.unitsRouted.WithLabelValues(string(mode), topic).Inc()
}

func (m *Metrics) observeSend(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sends.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) observeApprovalFallback() {
	if m == nil {
		return
	}
	m.approvalFallbacks.Inc()
}

func (m *Metrics) observeEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingEvictions.Add(float64(n))
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pendingItems.Set(float64(n))
}
