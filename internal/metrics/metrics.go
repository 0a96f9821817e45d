package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmon",
		Name:      "analysis_requests_total",
		Help:      "Disease analyses by outcome (structured, fallback, error).",
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "plantmon",
		Name:      "analysis_duration_seconds",
		Help:      "Latency of vision model calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	SensorReading = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "plantmon",
		Name:      "sensor_reading",
		Help:      "Latest synchronized reading per metric.",
	}, []string{"metric"})

	MetricAlert = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "plantmon",
		Name:      "metric_alert",
		Help:      "1 when the metric is outside its threshold, 0 otherwise.",
	}, []string{"metric"})

	AlertTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmon",
		Name:      "alert_transitions_total",
		Help:      "Threshold alert transitions by metric and kind.",
	}, []string{"metric", "kind"})

	ThresholdCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmon",
		Name:      "threshold_commits_total",
		Help:      "Threshold commits by result.",
	}, []string{"result"})

	ControlSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmon",
		Name:      "control_saves_total",
		Help:      "Control settings saves by result.",
	}, []string{"result"})

	WorkerJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantmon",
		Name:      "worker_jobs_total",
		Help:      "Background jobs run by the working pool, by pool and result.",
	}, []string{"pool", "result"})
)
