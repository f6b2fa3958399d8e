package rebalance

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stakeops/rebalancer/core/types"
)

// Metrics used in monitoring the rebalancer.
var (
	validatorsByVerdict = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Help:      "Number of validators per eligibility verdict",
			Name:      "validators_by_verdict",
			Namespace: "rebalancer",
		},
		[]string{"verdict"},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Operations by kind and final outcome",
			Name:      "operations_total",
			Namespace: "rebalancer",
		},
		[]string{"kind", "outcome"},
	)

	targetStakeTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Total stake allocated by the last plan",
			Name:      "target_stake_total",
			Namespace: "rebalancer",
		},
	)

	runsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Completed rebalancing runs",
			Name:      "runs_total",
			Namespace: "rebalancer",
		},
	)

	runDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Duration of the last run in seconds",
			Name:      "run_duration_seconds",
			Namespace: "rebalancer",
		},
	)
)

func init() {
	prometheus.MustRegister(
		validatorsByVerdict,
		operationsTotal,
		targetStakeTotal,
		runsTotal,
		runDurationSeconds,
	)
}

// observeRun publishes a finished run's report to the metrics registry.
func observeRun(report *types.RunReport) {
	counts := make(map[types.VerdictKind]int)
	for _, verdict := range report.Verdicts {
		counts[verdict.Kind]++
	}
	for _, kind := range []types.VerdictKind{types.VerdictEligible, types.VerdictPoor, types.VerdictExcluded} {
		validatorsByVerdict.WithLabelValues(kind.String()).Set(float64(counts[kind]))
	}

	var total uint64
	for _, amount := range report.Targets {
		total += amount
	}
	targetStakeTotal.Set(float64(total))

	for _, res := range report.Results {
		operationsTotal.WithLabelValues(res.Op.Kind.String(), res.Outcome.String()).Inc()
	}

	runsTotal.Inc()
	runDurationSeconds.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
}
