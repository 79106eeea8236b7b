package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order lifecycle events.
type OrderMetrics struct {
	placed      prometheus.Counter
	expired     prometheus.Counter
	transitions *prometheus.CounterVec
}

// NewOrderMetrics registers the order counters on reg.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders created at checkout.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_expired_total",
		Help: "Pending orders expired by the lazy payment window check.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status changes by target status.",
	}, []string{"status"})
	reg.MustRegister(placed, expired, transitions)
	return &OrderMetrics{placed: placed, expired: expired, transitions: transitions}
}

func (m *OrderMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

func (m *OrderMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}
