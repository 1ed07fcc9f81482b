package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity gate.
type Metrics struct {
	LoginAttempts           *prometheus.CounterVec
	Logouts                 prometheus.Counter
	TokenRejections         *prometheus.CounterVec
	DeviceDrift             prometheus.Counter
	RevocationCheckDuration prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "policardmed_login_attempts_total",
			Help: "Login attempts by role and outcome",
		}, []string{"role", "outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_logouts_total",
			Help: "Sessions revoked through logout",
		}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "policardmed_session_token_rejections_total",
			Help: "Session tokens rejected by reason",
		}, []string{"reason"}),
		DeviceDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "policardmed_session_device_drift_total",
			Help: "Sessions presented from a different device than the one they were issued to",
		}),
		RevocationCheckDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "policardmed_is_token_revoked_duration_ms",
			Help:    "Latency of token revocation checks in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

func (m *Metrics) IncrementLogin(role, outcome string) {
	m.LoginAttempts.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) IncrementTokenRejection(reason string) {
	m.TokenRejections.WithLabelValues(reason).Inc()
}
