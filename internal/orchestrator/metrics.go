package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricModeSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_mode_switches_total",
		Help: "Mode switches between guided and voice chat",
	}, []string{"to"})

	metricErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_errors_total",
		Help: "Reported failures by kind",
	}, []string{"kind"}) // device_acquisition, transport, unsupported_capability, other

	metricSurfaceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_surface_events_total",
		Help: "Surface events and user actions routed by the orchestrator",
	}, []string{"type"})

	// Must stay zero: guided capture and recognition active at the same time.
	metricExclusionViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_exclusion_violations_total",
		Help: "Observed overlaps of guided capture and voice recognition",
	})
)
