package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// busMetrics methods are safe on a nil receiver so the bus can skip nil
// checks when metrics are disabled.
type busMetrics struct {
	eventsTotal  *prometheus.CounterVec
	droppedTotal *prometheus.CounterVec
	listeners    prometheus.Gauge
}

func newBusMetrics(promRegistry prometheus.Registerer) *busMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &busMetrics{
		eventsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_events_total",
				Help: "total number of events emitted, by kind",
			},
			[]string{"kind"},
		),
		droppedTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_events_dropped_total",
				Help: "events not delivered because a listener queue was full",
			},
			[]string{"kind"},
		),
		listeners: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_event_listeners",
				Help: "current number of registered event listeners",
			},
		),
	}
}

func (m *busMetrics) emitted(k Kind) {
	if m != nil {
		m.eventsTotal.WithLabelValues(string(k)).Inc()
	}
}

func (m *busMetrics) dropped(k Kind) {
	if m != nil {
		m.droppedTotal.WithLabelValues(string(k)).Inc()
	}
}

func (m *busMetrics) listenerAdded() {
	if m != nil {
		m.listeners.Inc()
	}
}

func (m *busMetrics) listenerRemoved() {
	if m != nil {
		m.listeners.Dec()
	}
}
