// Package metrics exposes the consensus core's operational surface as
// prometheus collectors: PBFT round/step progress, DAG verification
// pipeline throughput, and proposal outcomes. Every consensus
// component that produces something worth graphing is handed a
// *Metrics and calls into it directly, rather than each component
// building its own collector set.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector this node registers. Each gauge or
// counter is independently registrable so a component can be run
// without the rest wiring up their own metrics.
type Metrics struct {
	registry prometheus.Registerer

	Round prometheus.Gauge
	Step  prometheus.Gauge
	Phase prometheus.Gauge

	ProposalsAttempted prometheus.Counter
	ProposalsPropagated prometheus.Counter

	DagBlocksVerified prometheus.Counter
	DagBlocksRejected prometheus.Counter
	DagUnverifiedQueueSize prometheus.Gauge
	DagVerifiedQueueSize prometheus.Gauge

	PeriodsFinalized prometheus.Counter
	VotesTallied prometheus.Counter
}

// New creates a Metrics instance and registers every collector with
// reg. A caller that only cares about one subsystem may still pass a
// fresh prometheus.NewRegistry() and read off the collectors it needs.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		Round: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taraxa_pbft_round",
			Help: "Current PBFT round number",
		}),
		Step: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taraxa_pbft_step",
			Help: "Current PBFT step within the round",
		}),
		Phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taraxa_pbft_phase",
			Help: "Current PBFT phase (0=Proposal,1=Filter,2=Certify,3=FirstFinish,4=SecondFinish)",
		}),
		ProposalsAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_proposals_attempted_total",
			Help: "Number of DAG block proposal attempts, including ones that did not clear sortition",
		}),
		ProposalsPropagated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_proposals_propagated_total",
			Help: "Number of DAG blocks successfully signed and submitted",
		}),
		DagBlocksVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_dag_blocks_verified_total",
			Help: "Number of DAG blocks that passed the verification pipeline",
		}),
		DagBlocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_dag_blocks_rejected_total",
			Help: "Number of DAG blocks that failed verification",
		}),
		DagUnverifiedQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taraxa_dag_unverified_queue_size",
			Help: "Number of DAG blocks currently queued for verification",
		}),
		DagVerifiedQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taraxa_dag_verified_queue_size",
			Help: "Number of DAG blocks verified and added to the graph but not yet popped from the verified queue",
		}),
		PeriodsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_pbft_periods_finalized_total",
			Help: "Number of PBFT periods finalized",
		}),
		VotesTallied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taraxa_votes_tallied_total",
			Help: "Number of votes that passed verification and were added to a tally",
		}),
	}

	collectors := []prometheus.Collector{
		m.Round, m.Step, m.Phase,
		m.ProposalsAttempted, m.ProposalsPropagated,
		m.DagBlocksVerified, m.DagBlocksRejected,
		m.DagUnverifiedQueueSize, m.DagVerifiedQueueSize,
		m.PeriodsFinalized, m.VotesTallied,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Noop returns a Metrics instance backed by a private registry, for
// callers (tests, tools) that need the interface but don't care about
// export.
func Noop() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
