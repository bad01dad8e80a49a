package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Intake metrics
	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_leads_total",
			Help: "Total number of logical leads processed",
		},
		[]string{"endpoint", "shape", "outcome"},
	)

	PayloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadrelay_payload_bytes_total",
			Help: "Total bytes of inbound payload data received",
		},
	)

	FallbacksApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_fallbacks_applied_total",
			Help: "Total number of fallback substitutions, per field",
		},
		[]string{"field"},
	)

	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadrelay_decode_errors_total",
			Help: "Total number of transport envelope decode failures",
		},
	)

	// Pipeline metrics
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadrelay_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration per logical lead in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Dispatch metrics
	DispatchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadrelay_dispatch_attempts",
			Help:    "Outbound call attempts per dispatched lead",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadrelay_dispatch_duration_seconds",
			Help:    "Duration of outbound dispatch including retries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Bulk sync metrics
	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_sync_records_total",
			Help: "Total number of records retrieved by bulk sync runs",
		},
		[]string{"resource"},
	)

	SyncPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_sync_pages_total",
			Help: "Total number of pages fetched by bulk sync runs",
		},
		[]string{"resource"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_rate_limit_hits_total",
			Help: "Total number of inbound requests rejected by the rate limiter",
		},
		[]string{"key"},
	)

	// Auth metrics
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_auth_rejections_total",
			Help: "Total number of requests rejected by the auth gate",
		},
		[]string{"reason"},
	)
)
