package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingora_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lingora_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingora_quota_decisions_total",
			Help: "Total quota consume decisions by outcome.",
		},
		[]string{"outcome"},
	)

	BonusGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingora_bonus_grants_total",
			Help: "Total bonus grant attempts by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingora_ratelimit_checks_total",
			Help: "Total rate-limit checks by outcome.",
		},
		[]string{"outcome"},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingora_store_errors_total",
			Help: "Total Redis store failures by operation.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaDecisionsTotal,
		BonusGrantsTotal,
		RateLimitChecksTotal,
		StoreErrorsTotal,
	)
}
