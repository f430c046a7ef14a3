package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsRecorder on a Prometheus registry,
// for deployments that scrape rather than push through an OTel pipeline.
//
// All metrics are namespaced with "stategraph". Expose them with promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewPrometheusMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
//	result, err := compiled.Run(ctx, initial, stategraph.WithMetrics(metrics))
type PrometheusMetrics struct {
	nodeExecutions *prometheus.CounterVec
	nodeLatency    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	checkpointSize *prometheus.HistogramVec
	interrupts     *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates and registers all run metrics with the given
// registry. A nil registry falls back to prometheus.DefaultRegisterer.
// Registering twice on the same registry panics (promauto semantics), so
// create one recorder per registry and share it across runs.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &PrometheusMetrics{
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "node_executions_total",
			Help:      "Number of node executions by node and outcome",
		}, []string{"node_id", "status"}),

		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id"}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "runs_total",
			Help:      "Number of runs by outcome status",
		}, []string{"status"}),

		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "run_latency_ms",
			Help:      "Run duration in milliseconds",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"status"}),

		checkpointSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "checkpoint_size_bytes",
			Help:      "Serialized checkpoint size in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"node_id"}),

		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "interrupts_total",
			Help:      "Number of interrupt pauses by node and phase",
		}, []string{"node_id", "phase"}),
	}
}

// RecordNodeExecution records a node execution.
func (pm *PrometheusMetrics) RecordNodeExecution(_ context.Context, nodeID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.nodeExecutions.WithLabelValues(nodeID, status).Inc()
	pm.nodeLatency.WithLabelValues(nodeID).Observe(float64(duration.Milliseconds()))
}

// RecordRun records a run outcome.
func (pm *PrometheusMetrics) RecordRun(_ context.Context, status string, duration time.Duration) {
	pm.runs.WithLabelValues(status).Inc()
	pm.runLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordCheckpoint records a checkpoint save.
func (pm *PrometheusMetrics) RecordCheckpoint(_ context.Context, nodeID string, sizeBytes int64) {
	pm.checkpointSize.WithLabelValues(nodeID).Observe(float64(sizeBytes))
}

// RecordInterrupt records an interrupt pause.
func (pm *PrometheusMetrics) RecordInterrupt(_ context.Context, nodeID string, phase string) {
	pm.interrupts.WithLabelValues(nodeID, phase).Inc()
}
