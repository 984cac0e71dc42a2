package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records portal authentication attempts by result (success|failure|invalid_token).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_auth_attempts_total",
			Help: "Total number of portal authentication attempts",
		},
		[]string{"result"},
	)

	// InviteValidations counts invite code checks by result (ok|invalid_code|blocked|not_found).
	InviteValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_invite_validations_total",
			Help: "Total number of invite code validations",
		},
		[]string{"result"},
	)

	// Activations counts account activations by result (success|failure).
	Activations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_activations_total",
			Help: "Total number of portal account activations",
		},
		[]string{"result"},
	)

	// LeadSubmissions counts portal lead submissions by attribution status.
	LeadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_lead_submissions_total",
			Help: "Total number of leads submitted through the portal",
		},
		[]string{"attribution"},
	)

	// GateDecisions counts membership gate evaluations (allow|deny).
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_gate_decisions_total",
			Help: "Total number of project membership gate decisions",
		},
		[]string{"target", "result"},
	)

	// RateLimited counts requests rejected by the public auth route limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateportal_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// ActiveSessions tracks refresh sessions issued by the local credential store.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "estateportal_active_sessions",
			Help: "Number of active local credential sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estateportal_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
