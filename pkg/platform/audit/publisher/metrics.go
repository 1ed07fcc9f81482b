package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Emitted             prometheus.Counter
	Dropped             prometheus.Counter
	PersistFailures     prometheus.Counter
	FallbackWrites      prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// NewMetrics registers the audit publisher metrics with the default registry.
func NewMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWithRegistry registers against reg; tests pass a fresh registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		Emitted: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_audit_events_emitted_total",
			Help: "Total number of audit events accepted by the publisher",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the async buffer was full",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_audit_persist_failures_total",
			Help: "Total number of audit events the primary sink failed to persist",
		}),
		FallbackWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_audit_fallback_writes_total",
			Help: "Total number of audit events written to the fallback sink",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "policardmed_audit_circuit_breaker_state",
			Help: "Primary audit sink circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) setCircuitOpen(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
