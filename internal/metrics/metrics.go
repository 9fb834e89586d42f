// Package metrics defines the Prometheus instrumentation for the daemon.
// Everything is registered on the default registry and served by the control
// surface's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sampling loop
	SenseTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "waterctl",
		Subsystem: "loop",
		Name:      "sense_ticks_total",
		Help:      "Total sensor sampling ticks",
	})

	// Sensor gauges
	SoilPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterctl",
		Subsystem: "sensor",
		Name:      "soil_percent",
		Help:      "Derived soil moisture percentage",
	})

	Temperature = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterctl",
		Subsystem: "sensor",
		Name:      "temperature_celsius",
		Help:      "Air temperature from the last successful climate read",
	})

	ReservoirPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterctl",
		Subsystem: "sensor",
		Name:      "reservoir_present",
		Help:      "Whether the reservoir holds water (1) or is empty (0)",
	})

	// Pump
	PumpOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterctl",
		Subsystem: "pump",
		Name:      "on",
		Help:      "Current pump command (1 on, 0 off)",
	})

	PumpTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "waterctl",
		Subsystem: "pump",
		Name:      "transitions_total",
		Help:      "Total pump on/off transitions",
	})

	PumpErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "waterctl",
		Subsystem: "pump",
		Name:      "actuation_errors_total",
		Help:      "Total failed pump pin writes",
	})

	// Predictor
	PredictionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "waterctl",
		Subsystem: "predictor",
		Name:      "attempts_total",
		Help:      "Total remote prediction attempts",
	})

	PredictionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterctl",
		Subsystem: "predictor",
		Name:      "failures_total",
		Help:      "Total failed prediction attempts by cause",
	}, []string{"cause"})

	PredictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "waterctl",
		Subsystem: "predictor",
		Name:      "request_duration_seconds",
		Help:      "Remote prediction request duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)
