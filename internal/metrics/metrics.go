// Package metrics exposes Prometheus instrumentation for the
// analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cruxview_analyses_total",
		Help: "Total number of video analyses, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cruxview_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cruxview_frames_analyzed_total",
		Help: "Total number of frames sent to the vision model",
	})

	VisionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cruxview_vision_failures_total",
		Help: "Total number of per-frame vision call failures",
	})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cruxview_active_analyses",
		Help: "Number of analyses currently running",
	})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cruxview_cache_requests_total",
		Help: "Result cache lookups, by outcome",
	}, []string{"outcome"})
)
