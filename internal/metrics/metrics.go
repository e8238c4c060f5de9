// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts HTTP requests handled by the service.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// DispatchOutcomesTotal counts dispatched operations by kind and terminal status.
	DispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtm_dispatch_outcomes_total",
			Help: "Total number of dispatched operations by kind and outcome status.",
		},
		[]string{"operation", "status"},
	)

	// HandlerDuration observes handler execution time per operation kind.
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtm_handler_duration_seconds",
			Help:    "Handler execution duration per operation kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// IdempotencyRecords tracks the number of live admission records in the guard.
	IdempotencyRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtm_idempotency_records",
			Help: "Number of live idempotency records held by the guard.",
		},
	)

	// IdempotencyEvictionsTotal counts records purged by the periodic sweep.
	IdempotencyEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtm_idempotency_evictions_total",
			Help: "Total number of idempotency records evicted by the sweeper.",
		},
	)

	// DeliveryQueueDepth tracks the number of notifications waiting in the queue.
	DeliveryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtm_delivery_queue_depth",
			Help: "Number of notifications waiting in the delivery queue.",
		},
	)

	// DeliveriesTotal counts notification deliveries by result.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtm_deliveries_total",
			Help: "Total number of notification deliveries by result.",
		},
		[]string{"result"},
	)
)
