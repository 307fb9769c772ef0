// Package metrics provides custom Prometheus metrics for KamiAI.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT error phases.
const (
	MQTTPhaseConnect        = "connect"
	MQTTPhasePublish        = "publish"
	MQTTPhaseConnectionLost = "connection_lost"
)

// MQTTMetrics tracks the broker connection and published predictions.
type MQTTMetrics struct {
	Connected            prometheus.Gauge
	PredictionsPublished prometheus.Counter
	Errors               *prometheus.CounterVec
	ReconnectAttempts    prometheus.Counter
	PayloadSize          prometheus.Histogram
	PublishLatency       prometheus.Histogram
}

// NewMQTTMetrics creates and registers the MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kamiai_mqtt_connected",
			Help: "1 while connected to the MQTT broker",
		}),
		PredictionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kamiai_mqtt_predictions_published_total",
			Help: "Live predictions delivered to the broker",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kamiai_mqtt_errors_total",
			Help: "MQTT failures by phase",
		}, []string{"phase"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kamiai_mqtt_reconnect_attempts_total",
			Help: "Automatic reconnection attempts",
		}),
		PayloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kamiai_mqtt_payload_size_bytes",
			Help:    "Size of published prediction payloads",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kamiai_mqtt_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected updates the connection gauge.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// RecordPublished counts one delivered prediction of size bytes.
func (m *MQTTMetrics) RecordPublished(size int) {
	m.PredictionsPublished.Inc()
	m.PayloadSize.Observe(float64(size))
}

// RecordError counts a failure in phase.
func (m *MQTTMetrics) RecordError(phase string) {
	m.Errors.WithLabelValues(phase).Inc()
}

// RecordReconnect counts an automatic reconnection attempt.
func (m *MQTTMetrics) RecordReconnect() {
	m.ReconnectAttempts.Inc()
}

// ObservePublish records the latency of a publish that started at start.
func (m *MQTTMetrics) ObservePublish(start time.Time) {
	m.PublishLatency.Observe(time.Since(start).Seconds())
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.PredictionsPublished.Describe(ch)
	m.Errors.Describe(ch)
	m.ReconnectAttempts.Describe(ch)
	m.PayloadSize.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connected.Collect(ch)
	m.PredictionsPublished.Collect(ch)
	m.Errors.Collect(ch)
	m.ReconnectAttempts.Collect(ch)
	m.PayloadSize.Collect(ch)
	m.PublishLatency.Collect(ch)
}
