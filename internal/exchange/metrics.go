package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_requests_total",
		Help: "Remote exchange requests by kind and outcome",
	}, []string{"kind", "status"})

	metricLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_latency_ms",
		Help:    "Remote exchange response latency (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.8, 10),
	}, []string{"kind"})
)
