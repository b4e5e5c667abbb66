// Package metrics defines the Prometheus collectors for wags-gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics. A nil *Metrics is safe to
// ignore; stages treat it as metrics disabled.
type Metrics struct {
	ToolCallsTotal    *prometheus.CounterVec
	RootsDecisions    *prometheus.CounterVec
	ElicitationsTotal *prometheus.CounterVec
	GroupTogglesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wags_gate",
				Name:      "tool_calls_total",
				Help:      "Total tool calls processed by the gateway",
			},
			[]string{"status"}, // status=forwarded/blocked/meta
		),
		RootsDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wags_gate",
				Name:      "roots_decisions_total",
				Help:      "Total access-control decisions against client roots",
			},
			[]string{"result"}, // result=allow/deny
		),
		ElicitationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wags_gate",
				Name:      "elicitations_total",
				Help:      "Total elicitation round trips by outcome",
			},
			[]string{"outcome"}, // outcome=accept/decline/cancel
		),
		GroupTogglesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wags_gate",
				Name:      "group_toggles_total",
				Help:      "Total group enable/disable operations",
			},
			[]string{"op"}, // op=enable/disable
		),
	}
}

// RecordToolCall increments the tool-call counter when metrics are enabled.
func (m *Metrics) RecordToolCall(status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(status).Inc()
}

// RecordRootsDecision increments the roots decision counter.
func (m *Metrics) RecordRootsDecision(result string) {
	if m == nil {
		return
	}
	m.RootsDecisions.WithLabelValues(result).Inc()
}

// RecordElicitation increments the elicitation outcome counter.
func (m *Metrics) RecordElicitation(outcome string) {
	if m == nil {
		return
	}
	m.ElicitationsTotal.WithLabelValues(outcome).Inc()
}

// RecordGroupToggle increments the group toggle counter.
func (m *Metrics) RecordGroupToggle(op string) {
	if m == nil {
		return
	}
	m.GroupTogglesTotal.WithLabelValues(op).Inc()
}
