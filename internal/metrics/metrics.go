// Package metrics exposes Prometheus instrumentation for the deal engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects deal engine metrics. A nil Recorder, or one built
// without a registerer, records nothing.
type Recorder struct {
	transitions   *prometheus.CounterVec
	gatewayCalls  *prometheus.CounterVec
	gatewayTiming *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	jobs          *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// NewRecorder registers the deal engine metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_status_transitions_total",
		Help: "Deal status transitions by source and target status.",
	}, []string{"from", "to"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_calls_total",
		Help: "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	gatewayTiming := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_call_duration_seconds",
		Help:    "Latency of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_notifications_total",
		Help: "Notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_scheduler_runs_total",
		Help: "Scheduled deal job runs by job and outcome.",
	}, []string{"job", "outcome"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payment_gateway_breaker_open",
		Help: "1 while the payment gateway circuit breaker is open.",
	}, []string{"name"})
	reg.MustRegister(transitions, gatewayCalls, gatewayTiming, notifications, jobs, breakerState)
	return &Recorder{
		transitions:   transitions,
		gatewayCalls:  gatewayCalls,
		gatewayTiming: gatewayTiming,
		notifications: notifications,
		jobs:          jobs,
		breakerState:  breakerState,
	}
}

func (r *Recorder) Transition(from, to string) {
	if r == nil || r.transitions == nil {
		return
	}
	r.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (r *Recorder) GatewayCall(operation string, took time.Duration, err error) {
	if r == nil || r.gatewayCalls == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.gatewayCalls.WithLabelValues(normalizeLabel(operation), outcome).Inc()
	r.gatewayTiming.WithLabelValues(normalizeLabel(operation)).Observe(took.Seconds())
}

func (r *Recorder) Notification(channel string, err error) {
	if r == nil || r.notifications == nil {
		return
	}
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	r.notifications.WithLabelValues(normalizeLabel(channel), outcome).Inc()
}

func (r *Recorder) JobRun(job string, err error) {
	if r == nil || r.jobs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.jobs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func (r *Recorder) BreakerOpen(name string, open bool) {
	if r == nil || r.breakerState == nil {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	r.breakerState.WithLabelValues(normalizeLabel(name)).Set(value)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
