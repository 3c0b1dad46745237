package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retrainRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitory_retrain_runs_total",
		Help: "Retrain pipeline runs by outcome status.",
	}, []string{"status"})

	promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitory_model_promotions_total",
		Help: "Trained models promoted to latest.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitory_retrain_duration_seconds",
		Help:    "End-to-end retrain pipeline duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
