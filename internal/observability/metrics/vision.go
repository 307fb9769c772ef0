// Package metrics provides custom Prometheus metrics for KamiAI.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// VisionMetrics contains all Prometheus metrics related to the module session,
// the classifier and the live loops.
type VisionMetrics struct {
	PredictionCounter *prometheus.CounterVec

	ExtractDuration *prometheus.HistogramVec
	PredictDuration *prometheus.HistogramVec

	OperationTotal  *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec
	ModelLoadTotal  *prometheus.CounterVec

	ModelLoadedGauge  *prometheus.GaugeVec
	StoredExamples    prometheus.Gauge
	FramesDropped     prometheus.Counter
	LiveLoopsActive   prometheus.Gauge
	StalePredictions  prometheus.Counter
	registry          *prometheus.Registry
	collectorsForSelf []prometheus.Collector
}

// NewVisionMetrics creates and registers the vision metrics.
func NewVisionMetrics(registry *prometheus.Registry) (*VisionMetrics, error) {
	m := &VisionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register vision metrics: %w", err)
	}
	return m, nil
}

func (m *VisionMetrics) initMetrics() {
	m.PredictionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_predictions_total",
			Help: "Total number of predictions partitioned by winning label.",
		},
		[]string{"label"},
	)

	m.ExtractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kamiai_extract_duration_seconds",
			Help:    "Time taken to compute one embedding",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10), // 1ms to ~1s
		},
		[]string{"module"},
	)

	m.PredictDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kamiai_predict_duration_seconds",
			Help:    "Time taken for a full predict call including extraction",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"module"},
	)

	m.OperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_vision_operations_total",
			Help: "Vision operations by status",
		},
		[]string{"operation", "status"},
	)

	m.OperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_vision_errors_total",
			Help: "Vision errors by category",
		},
		[]string{"operation", "category"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kamiai_model_loads_total",
			Help: "Module loads by module and status",
		},
		[]string{"module", "status"},
	)

	m.ModelLoadedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kamiai_module_ready",
			Help: "1 when the module session is Ready",
		},
		[]string{"module"},
	)

	m.StoredExamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kamiai_classifier_examples",
		Help: "Examples held by the active classifier",
	})

	m.FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kamiai_live_frames_dropped_total",
		Help: "Frames overwritten in the live mailbox before being consumed",
	})

	m.LiveLoopsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kamiai_live_loops_active",
		Help: "Number of running live loops",
	})

	m.StalePredictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kamiai_live_stale_predictions_total",
		Help: "Predictions discarded because the session changed while they ran",
	})

	m.collectorsForSelf = []prometheus.Collector{
		m.PredictionCounter,
		m.ExtractDuration,
		m.PredictDuration,
		m.OperationTotal,
		m.OperationErrors,
		m.ModelLoadTotal,
		m.ModelLoadedGauge,
		m.StoredExamples,
		m.FramesDropped,
		m.LiveLoopsActive,
		m.StalePredictions,
	}
}

// RecordPrediction records a completed prediction.
func (m *VisionMetrics) RecordPrediction(module, label string, durationSeconds float64) {
	m.PredictDuration.WithLabelValues(module).Observe(durationSeconds)
	m.OperationTotal.WithLabelValues(OpPredict, StatusSuccess).Inc()
	if label != "" {
		m.PredictionCounter.WithLabelValues(label).Inc()
	}
}

// RecordExtract records the duration of one embedding computation.
func (m *VisionMetrics) RecordExtract(module string, durationSeconds float64) {
	m.ExtractDuration.WithLabelValues(module).Observe(durationSeconds)
}

// RecordModelLoad records a module load attempt and updates the ready gauge.
func (m *VisionMetrics) RecordModelLoad(module string, err error) {
	m.ModelLoadTotal.WithLabelValues(module, statusOf(err)).Inc()
	if err != nil {
		m.ModelLoadedGauge.WithLabelValues(module).Set(0)
		m.RecordError(OpModelLoad, categorizeError(err))
		return
	}
	m.ModelLoadedGauge.WithLabelValues(module).Set(1)
}

// SetModuleUnloaded clears the ready gauge for module.
func (m *VisionMetrics) SetModuleUnloaded(module string) {
	m.ModelLoadedGauge.WithLabelValues(module).Set(0)
}

// SetStoredExamples updates the classifier example gauge.
func (m *VisionMetrics) SetStoredExamples(n int) {
	m.StoredExamples.Set(float64(n))
}

// RecordFrameDropped increments the dropped frame counter.
func (m *VisionMetrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordStalePrediction increments the stale prediction counter.
func (m *VisionMetrics) RecordStalePrediction() {
	m.StalePredictions.Inc()
}

// LoopStarted increments the running live loop gauge.
func (m *VisionMetrics) LoopStarted() { m.LiveLoopsActive.Inc() }

// LoopStopped decrements the running live loop gauge.
func (m *VisionMetrics) LoopStopped() { m.LiveLoopsActive.Dec() }

// ActiveLoops returns the current value of the running loop gauge.
func (m *VisionMetrics) ActiveLoops() float64 {
	metric := &dto.Metric{}
	if err := m.LiveLoopsActive.Write(metric); err != nil {
		GetLogger().Warn("failed to read live loop gauge", logger.Error(err))
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}

// RecordOperation records a vision operation and its status.
func (m *VisionMetrics) RecordOperation(operation, status string) {
	m.OperationTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records a vision error by category.
func (m *VisionMetrics) RecordError(operation, errorType string) {
	m.OperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordFailure records a failed vision operation under the error's category.
func (m *VisionMetrics) RecordFailure(operation string, err error) {
	m.RecordOperation(operation, StatusError)
	m.RecordError(operation, categorizeError(err))
}

// categorizeError returns the enhanced error category when present.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return string(ee.Category)
	}
	return "unknown"
}

// Describe implements the prometheus.Collector interface.
func (m *VisionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectorsForSelf {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *VisionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectorsForSelf {
		c.Collect(ch)
	}
}
