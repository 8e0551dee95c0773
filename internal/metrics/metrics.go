package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequestsTotal counts calls to the supplier API by method and status.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upstream_requests_total",
			Help: "Upstream API requests made by the console (by method and status).",
		},
		[]string{"method", "status"},
	)

	// UpstreamRequestDuration measures upstream call latency.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method"},
	)

	// RefreshTotal counts credential refresh attempts by outcome.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_credential_refresh_total",
			Help: "Credential refresh attempts (by outcome).",
		},
		[]string{"outcome"},
	)

	// RefreshWaiters records how many requests were parked behind each refresh.
	RefreshWaiters = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "console_credential_refresh_waiters",
			Help:    "Requests released by a single refresh.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	// GuardOutcomes counts session guard resolutions by final state.
	GuardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_guard_outcomes_total",
			Help: "Session guard resolutions (by state).",
		},
		[]string{"state"},
	)

	// EdgeRedirects counts access middleware redirects by reason.
	EdgeRedirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_edge_redirects_total",
			Help: "Redirects issued by the route access middleware (by reason).",
		},
		[]string{"reason"},
	)

	// EventPublishErrors counts session event delivery failures by sink.
	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_event_publish_errors_total",
			Help: "Session event delivery failures (by sink).",
		},
		[]string{"sink"},
	)
)

// ObserveUpstream records one upstream call. status 0 means a transport failure.
func ObserveUpstream(method string, status int, start time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(method, label).Inc()
	UpstreamRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// IncRefresh increments the refresh counter for outcome.
func IncRefresh(outcome string) {
	RefreshTotal.WithLabelValues(outcome).Inc()
}

// IncGuardOutcome increments the guard outcome counter.
func IncGuardOutcome(state string) {
	GuardOutcomes.WithLabelValues(state).Inc()
}

// IncEdgeRedirect increments the edge redirect counter.
func IncEdgeRedirect(reason string) {
	EdgeRedirects.WithLabelValues(reason).Inc()
}

// IncEventPublishError increments the event failure counter for sink.
func IncEventPublishError(sink string) {
	EventPublishErrors.WithLabelValues(sink).Inc()
}
