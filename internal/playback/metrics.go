package playback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_state_transitions_total",
		Help: "Guided playback state transitions",
	}, []string{"from", "to"})

	metricCheckpointFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playback_checkpoint_fires_total",
		Help: "Checkpoints reached (at most one per loaded segment)",
	})

	metricResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_results_total",
		Help: "Guided exchange outcomes applied",
	}, []string{"kind"}) // next_video, feedback_audio, noop, error

	metricSubmitMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playback_submit_ms",
		Help:    "Latency of speech submission (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	})
)
