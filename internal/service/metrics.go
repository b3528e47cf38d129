package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/orderengine/pkg/tracing"
)

var tracer = tracing.Tracer("service")

var (
	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders committed by the placement engine",
		},
		[]string{"currency"},
	)

	placementFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_placement_failures_total",
			Help: "Rejected or failed placements by error code",
		},
		[]string{"code"},
	)

	placementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "End-to-end placement latency, excluding post-commit hand-offs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	rateCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currency_rate_cache_lookups_total",
			Help: "Rate snapshot lookups by cache result",
		},
		[]string{"result"},
	)
)
