// Package proposer implements the block proposer pipeline: a
// loop that, once synced, repeatedly gathers pending transactions,
// computes the next DAG level, runs the VRF/VDF sortition gate, and
// signs and submits a new DAG block — unless the difficulty is the
// stale floor and this level has already used its MaxStaleRetries
// retries, in which case the cycle is skipped.
package proposer

import (
	"context"
	"strconv"
	"time"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dagmgr"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/mempool"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vdf"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vrf"
)

// Config bounds the proposal loop's pacing and transaction shard.
type Config struct {
	MinProposalDelay time.Duration
	TransactionLimit int
	TotalTrxShards   uint64
	MyTrxShard       uint64
	MaxStaleRetries  int
}

// SyncChecker lets the proposer skip proposing while the node is
// still catching up to the network.
type SyncChecker interface {
	IsSynced() bool
}

// Proposer runs the proposal loop for a single node identity.
type Proposer struct {
	cfg     Config
	vdfCfg  vdf.Config
	sk      *crypto.PrivateKey
	graph   *dag.Manager
	blocks  *dagmgr.Manager
	mempool mempool.Reader
	sync    SyncChecker
	met     *metrics.Metrics

	lastProposeLevel uint64
	numTries         int
}

// New creates a Proposer for a single identity sk.
func New(cfg Config, vdfCfg vdf.Config, sk *crypto.PrivateKey, graph *dag.Manager, blocks *dagmgr.Manager, mp mempool.Reader, sync SyncChecker) *Proposer {
	return &Proposer{cfg: cfg, vdfCfg: vdfCfg, sk: sk, graph: graph, blocks: blocks, mempool: mp, sync: sync, met: metrics.Noop()}
}

// SetMetrics attaches the node-wide metrics collectors this proposer
// reports attempted/propagated proposal counts to.
func (p *Proposer) SetMetrics(met *metrics.Metrics) { p.met = met }

// Run drives the proposal loop until ctx is cancelled, sleeping
// MinProposalDelay between attempts.
func (p *Proposer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MinProposalDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.sync != nil && !p.sync.IsSynced() {
				continue
			}
			_, _ = p.TryPropose()
		}
	}
}

// TryPropose attempts a single proposal cycle, returning the proposed
// block (if any) and whether a block was actually proposed.
func (p *Proposer) TryPropose() (*types.DagBlock, bool) {
	p.met.ProposalsAttempted.Inc()

	frontier := p.graph.GetFrontier()
	if frontier.Pivot == types.EmptyHash {
		return nil, false
	}

	shardedTrxs := p.shardedTransactions(frontier)
	if len(shardedTrxs) == 0 {
		return nil, false
	}

	proposeLevel, ok := p.proposeLevel(frontier)
	if !ok {
		return nil, false
	}

	msg := append(append([]byte{}, frontier.Pivot[:]...), encodeU64(proposeLevel)...)
	beta, _, err := vrf.Prove(p.sk, msg)
	if err != nil {
		return nil, false
	}
	difficulty := vdf.Difficulty(p.vdfCfg, beta)

	// A VDF-sortition ticket outside the selection band always yields
	// the stale floor difficulty. Retry accounting is purely about this
	// propose level: reset the counter once the frontier moves to a new
	// level, and give up retrying (rather than spin every tick) once
	// MaxStaleRetries is reached at the same level.
	if difficulty == p.vdfCfg.DifficultyStale {
		if proposeLevel != p.lastProposeLevel {
			p.lastProposeLevel = proposeLevel
			p.numTries = 0
		} else if p.numTries < p.cfg.MaxStaleRetries {
			p.numTries++
		} else {
			return nil, false
		}
	}

	sol, err := vdf.Compute(p.vdfCfg, p.sk, msg)
	if err != nil {
		return nil, false
	}

	blk := &types.DagBlock{
		Pivot:     frontier.Pivot,
		Level:     proposeLevel,
		Timestamp: uint64(time.Now().Unix()),
		Vdf: types.VdfSolution{
			VrfPublicKey: sol.VrfPublicKey[:],
			VrfProof:     sol.VrfProof,
			ProofPi:      sol.Pi,
			ProofL:       sol.L,
			Difficulty:   sol.Difficulty,
		},
		Tips:     frontier.Tips,
		Trxs:     shardedTrxs,
		Producer: crypto.Address(p.sk.PublicKey()),
	}

	sig, err := crypto.Sign(p.sk, blk.SignedHash())
	if err != nil {
		return nil, false
	}
	blk.Signature = sig
	blk.ResetHashCache()

	p.blocks.PushUnverified(blk)
	if proposeLevel != p.lastProposeLevel {
		p.lastProposeLevel = proposeLevel
		p.numTries = 0
	}
	p.met.ProposalsPropagated.Inc()
	return blk, true
}

// shardedTransactions packs pending transactions and restricts them to
// this node's shard: a transaction belongs to shard
// (high bits of its hash) mod TotalTrxShards. This asymmetry —
// transactions shard by hash while (see proposeLevel) block
// eligibility does not shard by address — is intentional: only the
// transaction set is sharded, never the DAG block producer set
// itself.
func (p *Proposer) shardedTransactions(frontier dag.Frontier) []types.Hash {
	pending := p.mempool.PackTransactions(p.cfg.TransactionLimit)
	if len(pending) == 0 {
		return nil
	}
	if p.cfg.TotalTrxShards <= 1 {
		return pending
	}
	out := make([]types.Hash, 0, len(pending))
	for _, t := range pending {
		shard := shardOf(t, p.cfg.TotalTrxShards)
		if shard == p.cfg.MyTrxShard {
			out = append(out, t)
		}
	}
	return out
}

// shardOf applies the "first 10 hex chars of the hash as a uint64,
// mod total shards" rule.
func shardOf(h types.Hash, totalShards uint64) uint64 {
	v, _ := strconv.ParseUint(hexPrefix(h, 10), 16, 64)
	return v % totalShards
}

func hexPrefix(h types.Hash, n int) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 0, n)
	for _, b := range h[:] {
		if len(buf) >= n {
			break
		}
		buf = append(buf, hexDigits[b>>4])
		if len(buf) < n {
			buf = append(buf, hexDigits[b&0xF])
		}
	}
	return string(buf)
}

// proposeLevel computes 1 + max(level(pivot), max level(tips)).
func (p *Proposer) proposeLevel(frontier dag.Frontier) (uint64, bool) {
	pivotLevel, ok := p.graph.Graph().Level(frontier.Pivot)
	if !ok {
		return 0, false
	}
	max := pivotLevel
	for _, t := range frontier.Tips {
		l, ok := p.graph.Graph().Level(t)
		if !ok {
			return 0, false
		}
		if l > max {
			max = l
		}
	}
	return max + 1, true
}

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (56 - 8*i))
	}
	return buf
}
