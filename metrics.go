package inbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes inbox sync counters. A nil *Metrics records nothing.
type Metrics struct {
	refreshes     *prometheus.CounterVec
	sends         *prometheus.CounterVec
	conversations *prometheus.GaugeVec
}

// NewMetrics creates the inbox collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "refresh_total",
			Help:      "Conversation refreshes by kind (full, thread) and result.",
		}, []string{"kind", "result"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "send_total",
			Help:      "Optimistic sends by result (ok, rolled_back).",
		}, []string{"result"}),
		conversations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "inbox",
			Name:      "conversations",
			Help:      "Conversations held locally per scope.",
		}, []string{"scope"}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.sends, m.conversations)
	}
	return m
}

func (m *Metrics) observeRefresh(kind, result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observeSend(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

func (m *Metrics) setConversations(scope Scope, n int) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(string(scope)).Set(float64(n))
}
