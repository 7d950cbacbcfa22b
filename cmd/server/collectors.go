package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"stablewatch/internal/application/analysis"
	"stablewatch/internal/application/supervisor"
)

func registerCollectors(metrics *analysis.Metrics, queue *analysis.Queue, sup *supervisor.Supervisor) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stablewatch_queue_depth",
			Help: "waiting jobs in the processing queue.",
		},
		func() float64 { return float64(queue.Depth()) },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stablewatch_active_streams",
			Help: "streams with a live transcoding subprocess.",
		},
		func() float64 { return float64(sup.ActiveCount()) },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stablewatch_inflight_extractions",
			Help: "chunk extractions currently running.",
		},
		func() float64 { return float64(metrics.Snapshot().InflightExtractions) },
	))

	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "stablewatch_chunks_extracted_total",
			Help: "successfully extracted chunks.",
		},
		func() float64 { return float64(metrics.Snapshot().ChunksExtracted) },
	))

	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "stablewatch_jobs_processed_total",
			Help: "jobs completed by the detection pipeline.",
		},
		func() float64 { return float64(metrics.Snapshot().JobsProcessed) },
	))

	prometheus.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "stablewatch_jobs_failed_total",
			Help: "jobs that failed terminally.",
		},
		func() float64 { return float64(metrics.Snapshot().JobsFailed) },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stablewatch_avg_extract_seconds",
			Help: "smoothed average chunk extraction duration.",
		},
		func() float64 { return metrics.Snapshot().AvgExtractSeconds },
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "stablewatch_avg_process_seconds",
			Help: "smoothed average detection call duration.",
		},
		func() float64 { return metrics.Snapshot().AvgProcessSeconds },
	))
}
