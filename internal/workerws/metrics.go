package workerws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surface_messages_total",
		Help: "Surface websocket messages by direction and type",
	}, []string{"direction", "type"})

	metricSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surface_send_errors_total",
		Help: "Commands that could not be delivered to the surface",
	}, []string{"type"})

	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "surface_connections",
		Help: "Currently connected surfaces",
	})

	metricCaptureWaitMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "surface_capture_wait_ms",
		Help:    "Time from capture_stop to capture_data (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})
)
