package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFragments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_final_fragments_total",
		Help: "Finalized transcript fragments accumulated",
	})

	// MetricRestarts counts recognition restarts after end-of-stream.
	MetricRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_restarts_total",
		Help: "Recognition restarts after end-of-stream",
	})

	// MetricSuppressed counts recognition results or starts ignored while a reply plays.
	MetricSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_suppressed_total",
		Help: "Recognition activity ignored while a reply is playing",
	}, []string{"what"}) // result, start, restart
)
