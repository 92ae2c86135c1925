package core

// Metrics (SPEC_FULL.md domain stack): Prometheus instrumentation for
// validator accuracy, consensus outcomes, and DoS bans. Grounded on the
// pack's prometheus/client_golang usage convention (package-level
// collectors registered once, incremented from the relevant component).

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConsensusOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvm",
		Subsystem: "consensus",
		Name:      "outcomes_total",
		Help:      "Validator-consensus round outcomes by result (accepted, rejected, disputed, no_consensus, sybil_escalated, dao_resolved).",
	}, []string{"result"})

	ValidatorAccuracy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cvm",
		Subsystem: "validator",
		Name:      "accuracy_rate",
		Help:      "Long-run accuracy rate per validator address.",
	}, []string{"validator"})

	DoSBans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvm",
		Subsystem: "dos_guard",
		Name:      "bans_total",
		Help:      "Number of addresses banned by the DoS guard, by request kind.",
	}, []string{"kind"})

	FraudRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvm",
		Subsystem: "fraud",
		Name:      "records_total",
		Help:      "Fraud records recorded, by penalty tier.",
	}, []string{"tier"})
)

var registerOnce sync.Once

// RegisterMetrics registers every package collector with the default
// Prometheus registry. Safe to call multiple times.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ConsensusOutcomes, ValidatorAccuracy, DoSBans, FraudRecords)
	})
}
