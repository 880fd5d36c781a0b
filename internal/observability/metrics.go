package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_synthesis_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_synthesis_latency_seconds",
		Help:    "End-to-end synthesis latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	engineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_engine_latency_seconds",
		Help:    "Synthesis engine subprocess latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// Pitch metrics
	pitchResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_pitch_resolutions_total",
		Help: "Pitch factor resolutions by source",
	}, []string{"source"}) // source: override, model, heuristic, neutral

	// Chat pass-through metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_chat_requests_total",
		Help: "Total number of chat completion requests",
	}, []string{"status"})

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_gateway_chat_latency_seconds",
		Help:    "Chat completion latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Artifact metrics
	artifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_gateway_artifact_bytes_total",
		Help: "Total bytes of audio artifacts written to storage",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// RecordSynthesis records the outcome and latency of one synthesis request
func RecordSynthesis(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
	synthesisLatency.Observe(seconds)
}

// RecordEngineLatency records a synthesis engine subprocess duration
func RecordEngineLatency(seconds float64) {
	engineLatency.Observe(seconds)
}

// RecordPitchResolution records which source produced the pitch factor
func RecordPitchResolution(source string) {
	pitchResolutions.WithLabelValues(source).Inc()
}

// RecordChat records the outcome and latency of one chat pass-through call
func RecordChat(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	chatRequests.WithLabelValues(status).Inc()
	chatLatency.Observe(seconds)
}

// RecordArtifactBytes records bytes written to artifact storage
func RecordArtifactBytes(n int64) {
	artifactBytes.Add(float64(n))
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
