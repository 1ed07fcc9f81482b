package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"policardmed/internal/member/models"
)

// Metrics provides observability for the member module.
type Metrics struct {
	MembersCreated      prometheus.Counter
	DuplicateRejections prometheus.Counter
	PaymentToggles      *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	OperationDuration   *prometheus.HistogramVec
	CurrentStats        *prometheus.GaugeVec
}

// New registers the member metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers against reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MembersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_members_created_total",
			Help: "Total number of members created",
		}),
		DuplicateRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_member_duplicate_cpf_total",
			Help: "Total number of member creations rejected for an already registered cpf",
		}),
		PaymentToggles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "policardmed_payment_status_toggles_total",
			Help: "Total number of payment status toggles by resulting status",
		}, []string{"status"}),
		ActiveSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "policardmed_member_subscriptions_active",
			Help: "Number of open member snapshot subscriptions",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policardmed_member_operation_duration_seconds",
			Help:    "Duration of member service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		CurrentStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "policardmed_member_stats",
			Help: "Dashboard aggregates from the latest member snapshot",
		}, []string{"stat"}),
	}
}

func (m *Metrics) IncrementMembersCreated() {
	m.MembersCreated.Inc()
}

func (m *Metrics) IncrementDuplicateRejections() {
	m.DuplicateRejections.Inc()
}

func (m *Metrics) IncrementPaymentToggle(status string) {
	m.PaymentToggles.WithLabelValues(status).Inc()
}

// ObserveOperation records an operation duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordStats publishes the dashboard counters as gauges.
func (m *Metrics) RecordStats(stats models.Stats) {
	m.CurrentStats.WithLabelValues("active_members").Set(float64(stats.ActiveMembers))
	m.CurrentStats.WithLabelValues("total_lives").Set(float64(stats.TotalLives))
	m.CurrentStats.WithLabelValues("expiring_soon").Set(float64(stats.ExpiringSoon))
	m.CurrentStats.WithLabelValues("defaulting").Set(float64(stats.Defaulting))
}
