package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	// Evaluations counts per-event term evaluations.
	// Labels: helper, result ("success", "failure" or "error").
	Evaluations *prometheus.CounterVec

	// Builds counts term builds. Label: result ("ok" or "error").
	Builds *prometheus.CounterVec

	// RequestDuration measures RPC handling time. Label: method.
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opbuilder",
				Subsystem: "evaluator",
				Name:      "evaluations_total",
				Help:      "Total number of term evaluations",
			},
			[]string{"helper", "result"},
		),
		Builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opbuilder",
				Subsystem: "evaluator",
				Name:      "builds_total",
				Help:      "Total number of helper builds",
			},
			[]string{"result"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "opbuilder",
				Subsystem: "evaluator",
				Name:      "request_duration_seconds",
				Help:      "Time spent handling evaluator requests",
				// 10us to 1s
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"method"},
		),
	}
}

func outcomeLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}
