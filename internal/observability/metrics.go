package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hb_backend_call_seconds",
			Help:    "Duration of calls to the hotel backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	BackendCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hb_backend_cache_hits_total",
			Help: "GET responses served from the memo cache",
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_submissions_total",
			Help: "Reservation submissions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	TotalMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_total_mismatch_total",
			Help: "Backend echoed a total different from the computed one",
		},
		[]string{"kind"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_payments_total",
			Help: "Payment checkouts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hb_db_tx_seconds",
			Help:    "Duration of ledger transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hb_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
