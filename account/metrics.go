package account

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitfsorg/libwallet-go/types"
)

// Metrics are shared by every account of a wallet. Methods are safe on a
// nil receiver.
type Metrics struct {
	submitted prometheus.Counter
	stale     prometheus.Counter
	inclusion *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics with promRegistry. A nil
// registry disables them.
func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	if promRegistry == nil {
		return nil
	}
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		submitted: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_transactions_submitted_total",
				Help: "transactions accepted by the node, including reissues",
			},
		),
		stale: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_transactions_stale_total",
				Help: "submissions rejected locally because an input was already spent or reserved",
			},
		),
		inclusion: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_inclusion_results_total",
				Help: "results of waiting for transaction inclusion, by outcome",
			},
			[]string{"state"},
		),
	}
}

func (m *Metrics) submittedInc() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) staleInc() {
	if m != nil {
		m.stale.Inc()
	}
}

func (m *Metrics) inclusionResult(state types.InclusionState) {
	if m != nil {
		m.inclusion.WithLabelValues(string(state)).Inc()
	}
}
