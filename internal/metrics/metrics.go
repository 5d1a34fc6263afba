// Package metrics exposes Prometheus counters for push delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// Metrics holds the delivery collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Deliveries    *prometheus.CounterVec
	Batches       *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	Events        *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "condo",
				Subsystem: "push",
				Name:      "deliveries_total",
				Help:      "Tokens dispatched, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		Batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "condo",
				Subsystem: "push",
				Name:      "batches_total",
				Help:      "Provider calls issued, by provider and status",
			},
			[]string{"provider", "status"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "condo",
				Subsystem: "push",
				Name:      "batch_duration_seconds",
				Help:      "Provider call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "condo",
				Subsystem: "push",
				Name:      "events_total",
				Help:      "Trigger events handled, by source and result",
			},
			[]string{"source", "result"},
		),
	}
}

// ObserveBatch records one provider call.
func (m *Metrics) ObserveBatch(res push.BatchResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	provider := string(res.Provider)
	status := "ok"
	if !res.OK() {
		status = "transport_error"
	}
	m.Batches.WithLabelValues(provider, status).Inc()
	m.BatchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	m.Deliveries.WithLabelValues(provider, "success").Add(float64(res.SuccessCount()))
	m.Deliveries.WithLabelValues(provider, "failure").Add(float64(res.FailureCount()))
}

// ObserveEvent records the handling of one trigger.
func (m *Metrics) ObserveEvent(source, result string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(source, result).Inc()
}
