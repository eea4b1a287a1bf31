// Package metrics registers the Prometheus collectors of the API.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthAttempts counts credential verifications by method and result code.
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of credential verifications",
		},
		[]string{"method", "result"},
	)

	// AccessDecisions counts authorization guard decisions.
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Total number of project access decisions",
		},
		[]string{"min_level", "result"},
	)

	// BillingReconciliations counts subscription gate reconciliations by outcome.
	BillingReconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reconciliations_total",
			Help: "Total number of subscription reconciliations against the billing provider",
		},
		[]string{"outcome"},
	)

	// GitHubTokenRefreshes counts GitHub token refresh attempts by outcome.
	GitHubTokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_token_refresh_total",
			Help: "Total number of GitHub user token refreshes",
		},
		[]string{"outcome"},
	)

	// ExternalCallDuration records outbound call latency in seconds.
	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "Duration of calls to external providers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthAttempts,
		AccessDecisions,
		BillingReconciliations,
		GitHubTokenRefreshes,
		ExternalCallDuration,
	)
}

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
