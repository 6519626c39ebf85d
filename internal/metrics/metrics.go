package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_queries_routed_total",
			Help: "Total number of routed questions by intent and engine",
		},
		[]string{"intent", "engine"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_query_duration_seconds",
			Help:    "Time spent answering a routed question",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)

	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_generation_requests_total",
			Help: "Generation provider attempts by model and status",
		},
		[]string{"model", "status"},
	)

	DataFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_data_fetches_total",
			Help: "Market data fetches by operation and source",
		},
		[]string{"operation", "source"},
	)

	BatchRowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_batch_rows_processed_total",
			Help: "Batch questions processed by status",
		},
		[]string{"status"},
	)
)
