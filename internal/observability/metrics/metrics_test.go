package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWorkflowMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.ObserveTransition("send", "ok")
	m.ObserveTransition("send", "invalid_state")
	m.ObserveSideEffectFailure("event_publish")
	m.ObserveBookingConverted()
	m.ObserveOperationLatency("accept", 0.02)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var transitions *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "beautyprecision_proposals_transitions_total" {
			transitions = mf
		}
	}
	if transitions == nil {
		t.Fatalf("transitions metric family not registered")
	}

	var sendOK float64
	for _, metric := range transitions.GetMetric() {
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["operation"] == "send" && labels["result"] == "ok" {
			sendOK = metric.GetCounter().GetValue()
		}
	}
	if sendOK != 1 {
		t.Fatalf("expected send/ok counter 1, got %v", sendOK)
	}
}

func TestWorkflowMetricsNilSafe(t *testing.T) {
	var m *WorkflowMetrics
	m.ObserveTransition("send", "ok")
	m.ObserveSideEffectFailure("mailer")
	m.ObserveBookingConverted()
	m.ObserveOperationLatency("send", 0.1)
}
