// Package dagmgr implements the DAG block manager: the
// ingestion and verification pipeline that sits in front of the
// block-DAG graph. Incoming blocks enter an unverified queue keyed by
// DAG level, a fixed-size pool of verifier goroutines runs the
// four-step verification pipeline on them, and passing blocks are
// added to the graph and also appended to a verified queue that
// PopVerified hands out in level order.
package dagmgr

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/mempool"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vdf"
)

// Status is the verification outcome a block is remembered under.
type Status int

const (
	StatusInvalid Status = iota
	StatusProposed
	StatusBroadcasted
)

// unverified is a block queued for verification; the queue holding it
// is keyed by the block's level, which preserves level-ascending
// processing order.
type unverified struct {
	block *types.DagBlock
}

// Manager is the thread-safe ingestion/verification pipeline.
type Manager struct {
	graph *dag.Manager
	vdfCfg vdf.Config
	mempool mempool.Reader

	mu         sync.Mutex
	cond       *sync.Cond
	unverified map[uint64][]unverified // level -> queue
	verified   map[uint64][]*types.DagBlock
	seen       map[types.Hash]struct{}
	status     map[types.Hash]Status
	stopped    bool

	numVerifiers int
	met          *metrics.Metrics
}

// New creates a Manager that verifies incoming blocks against graph
// and vdfCfg, pulling pending transactions from mp only to check
// membership (not to pack them — that's the proposer's job).
func New(graph *dag.Manager, vdfCfg vdf.Config, mp mempool.Reader, cfg config.ThreadPoolConfig) *Manager {
	m := &Manager{
		graph:        graph,
		vdfCfg:       vdfCfg,
		mempool:      mp,
		unverified:   map[uint64][]unverified{},
		verified:     map[uint64][]*types.DagBlock{},
		seen:         map[types.Hash]struct{}{},
		status:       map[types.Hash]Status{},
		numVerifiers: cfg.MidPriorityWorkers,
		met:          metrics.Noop(),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// IsKnown reports whether hash has already been seen (recorded by
// MarkSeen, or already in the graph) — the pre-check that stops
// duplicate broadcasts from re-entering the pipeline.
func (m *Manager) IsKnown(hash types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[hash]
	return ok || m.graph.Graph().HasVertex(hash)
}

// MarkSeen records hash as seen, returning false if it already was.
func (m *Manager) MarkSeen(hash types.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[hash]; ok {
		return false
	}
	m.seen[hash] = struct{}{}
	return true
}

// SetMetrics attaches the node-wide metrics collectors this manager
// reports queue sizes and verification outcomes to.
func (m *Manager) SetMetrics(met *metrics.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.met = met
}

// PushUnverified enqueues blk for verification.
func (m *Manager) PushUnverified(blk *types.DagBlock) {
	m.mu.Lock()
	m.unverified[blk.Level] = append(m.unverified[blk.Level], unverified{block: blk})
	m.met.DagUnverifiedQueueSize.Inc()
	m.mu.Unlock()
	m.cond.Broadcast()
}

// QueueSizes returns (unverified, verified) block counts.
func (m *Manager) QueueSizes() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var unv, ver int
	for _, q := range m.unverified {
		unv += len(q)
	}
	for _, q := range m.verified {
		ver += len(q)
	}
	return unv, ver
}

// PopVerified removes and returns the oldest verified block, smallest
// level first, and whether one was available.
func (m *Manager) PopVerified() (*types.DagBlock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bestLevel uint64
	found := false
	for l, q := range m.verified {
		if len(q) == 0 {
			continue
		}
		if !found || l < bestLevel {
			bestLevel, found = l, true
		}
	}
	if !found {
		return nil, false
	}
	q := m.verified[bestLevel]
	blk := q[0]
	if len(q) == 1 {
		delete(m.verified, bestLevel)
	} else {
		m.verified[bestLevel] = q[1:]
	}
	m.met.DagVerifiedQueueSize.Dec()
	return blk, true
}

// Run starts numVerifiers worker goroutines that drain the unverified
// queue, lowest level first, and runs until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < m.numVerifiers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.verifyLoop(ctx)
		}()
	}
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		m.cond.Broadcast()
	}()
	wg.Wait()
}

func (m *Manager) verifyLoop(ctx context.Context) {
	for {
		blk, ok := m.nextUnverified()
		if !ok {
			return
		}
		m.verifyBlock(blk)
	}
}

func (m *Manager) nextUnverified() (*types.DagBlock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.stopped {
			return nil, false
		}
		var bestLevel uint64
		found := false
		for l, q := range m.unverified {
			if len(q) == 0 {
				continue
			}
			if !found || l < bestLevel {
				bestLevel, found = l, true
			}
		}
		if found {
			q := m.unverified[bestLevel]
			blk := q[0].block
			if len(q) == 1 {
				delete(m.unverified, bestLevel)
			} else {
				m.unverified[bestLevel] = q[1:]
			}
			m.met.DagUnverifiedQueueSize.Dec()
			return blk, true
		}
		m.cond.Wait()
	}
}

// verifyBlock runs the four-step pipeline:
// (1) producer signature recovers, (2) pivot and tips are present in
// the graph with the correct level, (3) the VDF/VRF sortition
// verifies over the block's pivot hash and big-endian level, (4) every
// referenced transaction is known to the mempool. A block failing the
// signature or VDF check, or rejected by the graph, is recorded
// StatusInvalid and dropped; a block whose pivot/tips aren't present
// yet, or that references a transaction the mempool does not know, is
// re-queued as transient.
func (m *Manager) verifyBlock(blk *types.DagBlock) {
	hash := blk.Hash()

	if !crypto.Verify(blk.Signature, blk.SignedHash(), blk.Producer) {
		m.markInvalid(hash)
		return
	}

	if !m.graph.Graph().PivotAndTipsAvailable(blk.Pivot, blk.Tips) {
		m.requeueTransient(blk)
		return
	}

	msg := make([]byte, len(blk.Pivot)+8)
	copy(msg, blk.Pivot[:])
	binary.BigEndian.PutUint64(msg[len(blk.Pivot):], blk.Level)
	if err := vdf.Verify(m.vdfCfg, solutionFromBlock(blk), msg); err != nil {
		m.markInvalid(hash)
		return
	}

	for _, tx := range blk.Trxs {
		if !m.mempool.Has(tx) {
			m.requeueTransient(blk)
			return
		}
	}

	if err := m.graph.AddBlock(blk); err != nil {
		var transient *errs.TransientMissingData
		if errs.As(err, &transient) {
			m.requeueTransient(blk)
			return
		}
		m.markInvalid(hash)
		return
	}

	m.mu.Lock()
	m.status[hash] = StatusProposed
	m.verified[blk.Level] = append(m.verified[blk.Level], blk)
	m.met.DagBlocksVerified.Inc()
	m.met.DagVerifiedQueueSize.Inc()
	m.mu.Unlock()
}

func (m *Manager) markInvalid(hash types.Hash) {
	m.mu.Lock()
	m.status[hash] = StatusInvalid
	m.met.DagBlocksRejected.Inc()
	m.mu.Unlock()
}

func (m *Manager) requeueTransient(blk *types.DagBlock) {
	m.mu.Lock()
	m.unverified[blk.Level] = append(m.unverified[blk.Level], unverified{block: blk})
	m.met.DagUnverifiedQueueSize.Inc()
	m.mu.Unlock()
	m.cond.Broadcast()
}

func solutionFromBlock(blk *types.DagBlock) vdf.Solution {
	var pk types.PublicKey
	copy(pk[:], blk.Vdf.VrfPublicKey)
	return vdf.Solution{
		VrfPublicKey: pk,
		VrfProof:     blk.Vdf.VrfProof,
		Pi:           blk.Vdf.ProofPi,
		L:            blk.Vdf.ProofL,
		Difficulty:   blk.Vdf.Difficulty,
	}
}

// Status returns the remembered verification outcome for hash.
func (m *Manager) Status(hash types.Hash) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[hash]
	return s, ok
}
