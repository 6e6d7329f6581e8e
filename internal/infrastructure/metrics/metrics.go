package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Stability MCP metrics - using explicit registration
var (
	// Request counters
	RequestsTotal *prometheus.CounterVec

	// Tool call counters
	ToolCallsTotal *prometheus.CounterVec

	// Tool duration histogram
	ToolDuration *prometheus.HistogramVec

	// Upstream Stability API latency
	UpstreamLatency *prometheus.HistogramVec

	// Persisted artifact counter and bytes written
	ArtifactsTotal      prometheus.Counter
	ArtifactBytesStored prometheus.Counter
)

// init creates and registers all metrics with the default registry
func init() {
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "requests_total",
			Help:      "Total number of MCP requests",
		},
		[]string{"method", "status"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool_name"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "upstream_latency_seconds",
			Help:      "Stability API response time in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	ArtifactsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "artifacts_total",
			Help:      "Total artifacts persisted to the storage directory",
		},
	)

	ArtifactBytesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stability",
			Subsystem: "mcp",
			Name:      "artifact_bytes_stored_total",
			Help:      "Total image bytes written to the storage directory",
		},
	)

	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(UpstreamLatency)
	prometheus.MustRegister(ArtifactsTotal)
	prometheus.MustRegister(ArtifactBytesStored)
	log.Info().Msg("Stability MCP metrics registered with Prometheus")
}

// RecordRequest records an MCP request
func RecordRequest(method, status string) {
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordToolCall records a tool invocation
func RecordToolCall(toolName, status string, durationSec float64) {
	if status == "" {
		status = "unknown"
	}
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordUpstreamLatency records a Stability API response time
func RecordUpstreamLatency(endpoint string, durationSec float64) {
	UpstreamLatency.WithLabelValues(endpoint).Observe(durationSec)
}

// RecordArtifact records a persisted artifact
func RecordArtifact(sizeBytes int64) {
	ArtifactsTotal.Inc()
	if sizeBytes > 0 {
		ArtifactBytesStored.Add(float64(sizeBytes))
	}
}
