package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors
type Metrics struct {
	SessionsIssued   prometheus.Counter
	SessionsSwept    prometheus.Counter
	AuthFailures     *prometheus.CounterVec
	ResetRequests    prometheus.Counter
	ResetsCompleted  prometheus.Counter
	ResetTokensSwept prometheus.Counter
	OAuthLogins      *prometheus.CounterVec
	ExamSubmissions  *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_sessions_issued_total",
			Help: "Sessions issued after login or OAuth completion",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_sessions_swept_total",
			Help: "Expired sessions deleted by the background sweep",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_auth_failures_total",
			Help: "Rejected authentication attempts by reason",
		}, []string{"reason"}),
		ResetRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_password_reset_requests_total",
			Help: "Password reset requests received",
		}),
		ResetsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_password_resets_completed_total",
			Help: "Passwords changed through a reset token",
		}),
		ResetTokensSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "classroom_reset_tokens_swept_total",
			Help: "Expired reset tokens deleted by the background sweep",
		}),
		OAuthLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_oauth_logins_total",
			Help: "Completed OAuth logins by provider and account resolution",
		}, []string{"provider", "outcome"}),
		ExamSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_exam_submissions_total",
			Help: "Exam results recorded by submission type",
		}, []string{"type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classroom_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
}

// NewDefault registers the collectors together with the Go and process collectors
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// NewNop returns collectors on a private registry, for tests and tools
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns an http.Handler for Prometheus scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
