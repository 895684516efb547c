package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

// PipelineMetrics records per-stage outcomes of document analysis runs.
type PipelineMetrics struct {
	service string

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	imagesTotal   *prometheus.CounterVec
	imagesPerRun  *prometheus.HistogramVec
}

func newPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stage completions by outcome.",
		},
		[]string{"service", "stage", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	imagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "image_runs_total",
			Help:      "Completed image branches by mode.",
		},
		[]string{"service", "mode"},
	)
	imagesPerRun := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "images_per_document",
			Help:      "Classified images per analysed document.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service"},
	)

	registerer.MustRegister(stageTotal, stageDuration, imagesTotal, imagesPerRun)

	return &PipelineMetrics{
		service:       service,
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		imagesTotal:   imagesTotal,
		imagesPerRun:  imagesPerRun,
	}
}

func (m *PipelineMetrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.stageTotal.WithLabelValues(m.service, stage, outcome).Inc()
	m.stageDuration.WithLabelValues(m.service, stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveImages(mode domain.ImageMode, count int) {
	m.imagesTotal.WithLabelValues(m.service, string(mode)).Inc()
	if mode != domain.ImageModeSkipped {
		m.imagesPerRun.WithLabelValues(m.service).Observe(float64(count))
	}
}
