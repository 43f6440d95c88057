package voicechat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_state_transitions_total",
		Help: "Voice chat presentation state transitions",
	}, []string{"from", "to"})

	metricReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicechat_replies_total",
		Help: "Voice chat replies by outcome",
	}, []string{"status"})

	metricReplyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicechat_reply_ms",
		Help:    "Latency of transcript submission (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 10),
	})
)
