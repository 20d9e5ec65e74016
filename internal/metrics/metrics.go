// Package metrics holds the Prometheus collectors for capture, export and dialogue turns.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexaudio"

// Metrics contains all Prometheus metrics for the conversation service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Capture metrics
	FramesRecorded  prometheus.Counter
	FramesDropped   prometheus.Counter
	SilenceTriggers prometheus.Counter

	// Export metrics
	Exports        prometheus.Counter
	ExportBytes    prometheus.Histogram
	ExportDuration prometheus.Histogram

	// Dialogue RPC metrics
	RPCCalls     prometheus.Counter
	RPCFailures  prometheus.Counter
	RPCDuration  prometheus.Histogram
	BreakerState prometheus.Gauge

	// Conversation metrics
	Transitions *prometheus.CounterVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_recorded_total",
			Help:      "Total number of capture frames queued for recording",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of capture frames dropped because the worker queue was full",
		}),
		SilenceTriggers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silence_triggers_total",
			Help:      "Total number of frames that satisfied the silence condition",
		}),
		Exports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of WAV exports delivered",
		}),
		ExportBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_size_bytes",
			Help:      "Size of exported WAV payloads",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		ExportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent merging, downsampling and encoding an export",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~250ms
		}),
		RPCCalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_requests_total",
			Help:      "Total number of dialogue PostContent calls",
		}),
		RPCFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_failures_total",
			Help:      "Total number of failed dialogue PostContent calls",
		}),
		RPCDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dialogue_duration_seconds",
			Help:      "Duration of dialogue PostContent calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dialogue_breaker_state",
			Help:      "Dialogue circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Conversation state transitions",
		}, []string{"from", "to"}),
	}
}

// Handler serves the collectors gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordFrame counts a queued frame, or a dropped one.
func (m *Metrics) RecordFrame(dropped bool) {
	if m == nil {
		return
	}
	if dropped {
		m.FramesDropped.Inc()
		return
	}
	m.FramesRecorded.Inc()
}

// RecordSilence increments the silence trigger counter
func (m *Metrics) RecordSilence() {
	if m == nil {
		return
	}
	m.SilenceTriggers.Inc()
}

// RecordExport records a delivered export
func (m *Metrics) RecordExport(sizeBytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Exports.Inc()
	m.ExportBytes.Observe(float64(sizeBytes))
	m.ExportDuration.Observe(durationSeconds)
}

// RecordRPC records one dialogue call and its outcome
func (m *Metrics) RecordRPC(durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.RPCCalls.Inc()
	if err != nil {
		m.RPCFailures.Inc()
	}
	m.RPCDuration.Observe(durationSeconds)
}

// RecordBreaker publishes the dialogue breaker state
func (m *Metrics) RecordBreaker(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

// RecordTransition counts a state change
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}
