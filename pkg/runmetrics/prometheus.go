package runmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports scheduler-level metrics (step outcomes, gate
// durations, circuit breaker trips) for a /metrics endpoint, mirroring the
// counter/histogram shape the LLM middleware's recorder uses.
type PrometheusRecorder struct {
	stepsTotal         *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	gateDuration       *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	circuitBreakerTrip prometheus.Counter
	completeness       *prometheus.GaugeVec
}

// NewPrometheusRecorder registers and returns a scheduler metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		stepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ralph_steps_total",
				Help: "Total number of story execution attempts by outcome",
			},
			[]string{"run_id", "status"},
		),
		stepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ralph_step_duration_seconds",
				Help:    "Duration of a single story execution attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"run_id"},
		),
		gateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ralph_gate_duration_seconds",
				Help:    "Duration of a quality gate check",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"gate_name"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ralph_errors_total",
				Help: "Total number of story errors by category",
			},
			[]string{"category"},
		),
		circuitBreakerTrip: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ralph_circuit_breaker_trips_total",
				Help: "Total number of times the cross-batch circuit breaker tripped",
			},
		),
		completeness: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ralph_run_completeness_percent",
				Help: "Percentage of expected steps with durable evidence recorded",
			},
			[]string{"run_id"},
		),
	}
}

// ObserveStep records one story execution attempt's outcome and duration.
func (p *PrometheusRecorder) ObserveStep(runID string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.stepsTotal.WithLabelValues(runID, status).Inc()
	p.stepDuration.WithLabelValues(runID).Observe(duration.Seconds())
}

// ObserveGate records a quality gate's duration.
func (p *PrometheusRecorder) ObserveGate(gateName string, duration time.Duration) {
	p.gateDuration.WithLabelValues(gateName).Observe(duration.Seconds())
}

// IncError records one occurrence of an error category.
func (p *PrometheusRecorder) IncError(category string) {
	p.errorsTotal.WithLabelValues(category).Inc()
}

// IncCircuitBreakerTrip records a circuit breaker trip.
func (p *PrometheusRecorder) IncCircuitBreakerTrip() {
	p.circuitBreakerTrip.Inc()
}

// SetCompleteness publishes a run's current completeness percentage.
func (p *PrometheusRecorder) SetCompleteness(runID string, percent float64) {
	p.completeness.WithLabelValues(runID).Set(percent)
}
