package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwell_ingest_records_total",
			Help: "Total number of log records received",
		},
		[]string{"endpoint", "status"},
	)

	IngestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwell_ingest_bytes_total",
			Help: "Total bytes of log payloads received",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logwell_ingest_duration_seconds",
			Help:    "Duration of ingest pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Incident metrics
	IncidentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwell_incidents_created_total",
			Help: "Total number of incidents created",
		},
	)

	IncidentsReopened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwell_incidents_reopened_total",
			Help: "Total number of incident reopens",
		},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logwell_storage_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwell_storage_errors_total",
			Help: "Total number of storage errors",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwell_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"project"},
	)

	// Search mirror metrics
	SearchIndexErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwell_search_index_errors_total",
			Help: "Total number of search index mirror failures",
		},
	)
)
