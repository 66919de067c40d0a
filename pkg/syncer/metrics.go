package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_sync_runs_total",
		Help: "Warmup job runs by outcome (success, truncated, failed)",
	}, []string{"job", "outcome"})

	lastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listing_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last complete warmup per job",
	}, []string{"job"})
)
