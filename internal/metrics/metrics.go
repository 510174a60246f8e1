package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArchiveAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailycast_archive_api_calls_total",
			Help: "Total Open-Meteo archive API calls",
		},
		[]string{"status"},
	)

	ArchiveAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dailycast_archive_api_latency_seconds",
			Help:    "Archive API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ObservationsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dailycast_observations_ingested_total",
			Help: "Total daily observations successfully stored",
		},
	)

	RolloutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailycast_rollouts_total",
			Help: "Total recursive forecast rollouts by result",
		},
		[]string{"result"},
	)

	PredictorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailycast_predictor_latency_seconds",
			Help:    "Single predictor invocation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"target"},
	)

	RemotePredictorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailycast_remote_predictor_calls_total",
			Help: "Total model server calls by target and status",
		},
		[]string{"target", "status"},
	)
)
