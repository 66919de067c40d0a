package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_pages_fetched_total",
		Help: "Total listing pages requested by endpoint",
	}, []string{"endpoint"})

	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_aggregations_total",
		Help: "Total listing aggregations by endpoint and termination reason",
	}, []string{"endpoint", "reason"})

	aggregatedItems = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_aggregated_items",
		Help:    "Items returned per aggregation by endpoint",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"endpoint"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_aggregation_duration_seconds",
		Help:    "Wall-clock duration of an aggregation by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})
)
