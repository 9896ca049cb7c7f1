package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics exposes counters/histograms for the proposal workflow.
type WorkflowMetrics struct {
	transitionsTotal  *prometheus.CounterVec
	sideEffectFailed  *prometheus.CounterVec
	bookingsConverted prometheus.Counter
	operationLatency  *prometheus.HistogramVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beautyprecision",
			Subsystem: "proposals",
			Name:      "transitions_total",
			Help:      "Total proposal workflow operations by outcome",
		}, []string{"operation", "result"}),
		sideEffectFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beautyprecision",
			Subsystem: "proposals",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed and were logged",
		}, []string{"effect"}),
		bookingsConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beautyprecision",
			Subsystem: "proposals",
			Name:      "bookings_converted_total",
			Help:      "Accepted proposals converted into bookings",
		}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beautyprecision",
			Subsystem: "proposals",
			Name:      "operation_latency_seconds",
			Help:      "Latency of proposal workflow operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.sideEffectFailed, m.bookingsConverted, m.operationLatency)
	return m
}

func (m *WorkflowMetrics) ObserveTransition(operation, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(operation, result).Inc()
}

func (m *WorkflowMetrics) ObserveSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailed.WithLabelValues(effect).Inc()
}

func (m *WorkflowMetrics) ObserveBookingConverted() {
	if m == nil {
		return
	}
	m.bookingsConverted.Inc()
}

func (m *WorkflowMetrics) ObserveOperationLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}
