// Package node wires the consensus core's components into a single
// running node: a Capabilities bundle carrying the
// storage/executor/outbox/clock collaborators every component needs,
// and a Supervisor that owns the DAG block manager, vote manager, and
// PBFT manager and starts/stops them together.
package node

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dagmgr"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/executor"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/mempool"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/pbft"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/proposer"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vdf"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vote"
)

// Clock abstracts wall-clock time so tests can inject a fake one. It
// is carried in Capabilities; the consensus components take their
// block timestamps from time.Now, not from it.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default, real-time Clock.
var SystemClock Clock = systemClock{}

// Capabilities bundles every external collaborator a node needs so
// components can be constructed without each depending on a growing
// constructor argument list.
type Capabilities struct {
	Storage  *storage.Database
	Executor executor.Executor
	Outbox   chan<- types.Hash // held in the bundle; no component sends on it
	Clock    Clock

	// Metrics is the registry-backed collector set every sub-component
	// reports to. Left nil, New creates one backed by a fresh
	// prometheus.NewRegistry() so a caller that doesn't care about
	// export still gets working counters/gauges.
	Metrics *metrics.Metrics
}

// Supervisor owns the full consensus pipeline for one node identity:
// the DAG graph/manager, the DAG block verification pipeline, the
// vote manager, and the PBFT round state machine, and starts/stops
// them as one unit.
type Supervisor struct {
	caps Capabilities
	cfg  config.Config

	Dag      *dag.Manager
	Blocks   *dagmgr.Manager
	Votes    *vote.Manager
	Pbft     *pbft.Manager
	Proposer *proposer.Proposer
	Metrics  *metrics.Metrics

	cancel context.CancelFunc
}

// New assembles a Supervisor for sk, rooted at genesis, using dpos for
// committee/weight data and mp as the transaction source.
func New(cfg config.Config, caps Capabilities, sk *crypto.PrivateKey, genesis types.Hash, dpos vote.DposReader, mp mempool.Reader, sync proposer.SyncChecker) *Supervisor {
	met := caps.Metrics
	if met == nil {
		var err error
		met, err = metrics.New(prometheus.NewRegistry())
		if err != nil {
			met = metrics.Noop()
		}
	}

	dagMgr := dag.NewManager(genesis)
	blocks := dagmgr.New(dagMgr, vdfConfigFrom(cfg), mp, cfg.ThreadPool)
	blocks.SetMetrics(met)
	votes := vote.NewManager(dpos)
	votes.SetMetrics(met)
	pbftMgr := pbft.New(cfg.Pbft, sk, caps.Storage, dagMgr, votes, caps.Executor, dpos, genesis)
	pbftMgr.SetMetrics(met)
	prop := proposer.New(proposer.Config{
		MinProposalDelay: cfg.Pbft.Lambda,
		TransactionLimit: 100,
		TotalTrxShards:   1,
		MyTrxShard:       0,
		MaxStaleRetries:  3,
	}, vdfConfigFrom(cfg), sk, dagMgr, blocks, mp, sync)
	prop.SetMetrics(met)

	return &Supervisor{
		caps:     caps,
		cfg:      cfg,
		Dag:      dagMgr,
		Blocks:   blocks,
		Votes:    votes,
		Pbft:     pbftMgr,
		Proposer: prop,
		Metrics:  met,
	}
}

// Start launches the DAG verification pipeline, the proposer loop, and
// the PBFT round loop as goroutines under a single cancellable
// context.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.Blocks.Run(ctx)
	go s.Proposer.Run(ctx)
	go s.Pbft.Run(ctx)
}

// Stop cancels every goroutine Start launched.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func vdfConfigFrom(cfg config.Config) vdf.Config {
	return vdf.Config{
		ThresholdSelection: cfg.Vdf.ThresholdSelection,
		ThresholdOmit:      cfg.Vdf.ThresholdOmit,
		DifficultyMin:      cfg.Vdf.DifficultyMin,
		DifficultyMax:      cfg.Vdf.DifficultyMax,
		DifficultyStale:    cfg.Vdf.DifficultyStale,
		LambdaBound:        cfg.Vdf.LambdaBound,
	}
}
