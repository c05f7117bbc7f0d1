// Package pbft implements the five-phase PBFT round state machine:
// Proposal, Filter, Certify, First-finish, Second-finish. Each
// round proposes a PBFT block over the DAG order, cert-votes a value
// once 2t+1 soft-votes land on it, and finalizes the period once 2t+1
// cert-votes (or, while polling, 2t+1 next-votes) agree on it. The
// finalization commits the DAG order and the PBFT block's period in
// one storage batch; cert-votes, the PBFT block body and the chain
// head are not stored, and no value is carried over between rounds.
package pbft

import (
	"context"
	"sync"
	"time"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/executor"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vote"
)

// Phase enumerates the five per-round states.
type Phase int

const (
	PhaseProposal Phase = iota
	PhaseFilter
	PhaseCertify
	PhaseFirstFinish
	PhaseSecondFinish
)

// maxSteps bounds how many finish/poll steps a round may run; past it
// the manager moves on to a fresh round. No sync is requested.
const maxSteps = 13

// DposReader supplies the committee/weight data every phase consults.
type DposReader = vote.DposReader

// Manager drives the PBFT round loop for a single node identity.
type Manager struct {
	cfg   config.PbftConfig
	sk    *crypto.PrivateKey
	db    *storage.Database
	dag   *dag.Manager
	votes *vote.Manager
	exec  executor.Executor
	dpos  DposReader
	met   *metrics.Metrics

	mu sync.RWMutex

	round           uint64
	step            uint64
	phase           Phase
	twoTPlusOne     types.Weight
	threshold       types.Weight
	lastPbftHash    types.Hash
	proposedHash    types.Hash
	proposedValid   bool
	certVotedHash   types.Hash
	certVotedValid  bool
	roundStart      time.Time
}

// New creates a Manager rooted at genesisPbftHash.
func New(cfg config.PbftConfig, sk *crypto.PrivateKey, db *storage.Database, dagMgr *dag.Manager, votes *vote.Manager, exec executor.Executor, dpos DposReader, genesisPbftHash types.Hash) *Manager {
	return &Manager{
		cfg:          cfg,
		sk:           sk,
		db:           db,
		dag:          dagMgr,
		votes:        votes,
		exec:         exec,
		dpos:         dpos,
		met:          metrics.Noop(),
		round:        1,
		step:         1,
		phase:        PhaseProposal,
		lastPbftHash: genesisPbftHash,
		roundStart:   time.Time{},
	}
}

// SetMetrics attaches the node-wide metrics collectors this manager
// reports round/step/phase/finalization counts to.
func (m *Manager) SetMetrics(met *metrics.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.met = met
}

// Round returns the current round number.
func (m *Manager) Round() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

// Step returns the current step number within the round.
func (m *Manager) Step() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.step
}

// updateTwoTPlusOneAndThreshold recomputes 2t+1 and the sortition
// threshold from the current DPOS committee snapshot:
// 2t+1 = floor(min(C,V)*2/3)+1.
func (m *Manager) updateTwoTPlusOneAndThreshold() {
	total := m.dpos.TotalEligibleVotes()
	committee := m.cfg.CommitteeSize
	effective := committee
	if total < committee {
		effective = total
	}
	m.twoTPlusOne = effective*2/3 + 1
	m.threshold = effective
}

// Run drives the round loop until ctx is cancelled, running one
// phase per tick of a Lambda/10 ticker.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Lambda / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.stateOperations()
		}
	}
}

// stateOperations runs exactly one phase's work and advances state.
func (m *Manager) stateOperations() {
	m.mu.Lock()
	phase := m.phase
	m.met.Round.Set(float64(m.round))
	m.met.Step.Set(float64(m.step))
	m.met.Phase.Set(float64(m.phase))
	m.mu.Unlock()

	switch phase {
	case PhaseProposal:
		m.proposeBlock()
	case PhaseFilter:
		m.identifyBlock()
	case PhaseCertify:
		m.certifyBlock()
	case PhaseFirstFinish:
		m.firstFinish()
	case PhaseSecondFinish:
		m.secondFinish()
	}
}

// placeVote signs a vote for blockHash under sortition and stages it
// into the unverified table for tallying. A node's own votes go
// through the same verify/tally path as any other peer's, rather than
// being trusted implicitly.
func (m *Manager) placeVote(blockHash types.Hash, sortition vote.Sortition) {
	v, err := vote.Sign(m.sk, blockHash, sortition)
	if err != nil {
		return
	}
	m.votes.AddUnverifiedVote(v)
	m.votes.VerifyBatch(sortition.Round, m.threshold)
}

// shouldSpeak reports whether this node's weighted sortition draw for
// (type, round, step, weightedIndex) clears the committee threshold.
func (m *Manager) shouldSpeak(t vote.Type, round, step, weightedIndex uint64) (vote.Sortition, bool) {
	s, err := vote.NewSortition(m.sk, t, round, step, weightedIndex)
	if err != nil {
		return vote.Sortition{}, false
	}
	return s, s.CanSpeak(m.threshold, m.dpos.TotalEligibleVotes())
}

// proposeBlock runs the Proposal phase: if eligible, compute the DAG
// order from the current frontier and place a propose-vote for it.
// An ineligible node places no vote; the previous round's next-votes
// value is not carried over.
func (m *Manager) proposeBlock() {
	m.updateTwoTPlusOneAndThreshold()

	m.mu.Lock()
	round := m.round
	m.mu.Unlock()

	sortition, ok := m.shouldSpeak(vote.TypePropose, round, 1, 0)
	if ok {
		_, order, err := m.dag.ComputeOrder(m.dag.GetFrontier().Pivot)
		if err == nil {
			blk := &types.PbftBlock{
				PrevHash:  m.lastPbftHash,
				Period:    m.dag.Period() + 1,
				Timestamp: uint64(time.Now().Unix()),
			}
			if len(order) > 0 {
				blk.AnchorHash = order[len(order)-1]
			}
			sig, err := crypto.Sign(m.sk, blk.SignedHash())
			if err == nil {
				blk.Signature = sig
				blk.ResetHashCache()
				hash := blk.Hash()
				m.placeVote(hash, sortition)
				m.mu.Lock()
				m.proposedHash = hash
				m.proposedValid = true
				m.mu.Unlock()
			}
		}
	}

	m.advance(PhaseFilter)
}

// identifyBlock runs the Filter phase: tally the step-1 propose-votes
// and soft-vote the value carrying the most propose-vote weight. The
// leader is not chosen by comparing VRF credentials.
func (m *Manager) identifyBlock() {
	m.mu.RLock()
	round := m.round
	m.mu.RUnlock()

	bundle := m.votes.VotesBundleForStep(round, 1, 1) // leader identification needs only one propose-vote copy here
	if bundle.Enough {
		if sortition, ok := m.shouldSpeak(vote.TypeSoft, round, 2, 0); ok {
			m.placeVote(bundle.VotedHash, sortition)
		}
	}
	m.advance(PhaseCertify)
}

// certifyBlock runs the Certify phase: tally soft-votes toward 2t+1
// and, if reached, cert-vote the value and remember it as cert-voted.
func (m *Manager) certifyBlock() {
	m.mu.RLock()
	round := m.round
	m.mu.RUnlock()

	bundle := m.votes.VotesBundleForStep(round, 2, m.twoTPlusOne)
	if bundle.Enough {
		if sortition, ok := m.shouldSpeak(vote.TypeCert, round, 3, 0); ok {
			m.placeVote(bundle.VotedHash, sortition)
			m.mu.Lock()
			m.certVotedHash = bundle.VotedHash
			m.certVotedValid = true
			m.mu.Unlock()
		}
	}
	m.advance(PhaseFirstFinish)
}

// firstFinish runs the First-finish phase: if this round cert-voted a
// value and 2t+1 cert-votes for it have been tallied, finalize it;
// otherwise next-vote to carry state forward.
func (m *Manager) firstFinish() {
	m.mu.RLock()
	round, certHash, certValid := m.round, m.certVotedHash, m.certVotedValid
	m.mu.RUnlock()

	if certValid {
		if cert := m.votes.VotesBundleForStep(round, 3, m.twoTPlusOne); cert.Enough && cert.VotedHash == certHash {
			if err := m.finalize(certHash, round); err == nil {
				m.resetRound()
				return
			}
		}
	}

	if sortition, ok := m.shouldSpeak(vote.TypeNext, round, 4, 0); ok {
		next := m.certVotedHash
		if !certValid {
			next = types.EmptyHash
		}
		m.placeVote(next, sortition)
	}
	m.advance(PhaseSecondFinish)
}

// secondFinish runs the Second-finish (polling) phase: tally next
// votes; if 2t+1 agree on a non-null value, finalize it; if 2t+1 agree
// on null, advance to a fresh round at step 1; otherwise keep polling
// up to maxSteps, then advance to a fresh round. No sync is requested.
func (m *Manager) secondFinish() {
	m.mu.RLock()
	round, step := m.round, m.step
	m.mu.RUnlock()

	bundle := m.votes.SetNextVotes(m.votes.VotesForRound(round, vote.TypeNext), m.twoTPlusOne)
	if bundle.EnoughForNullBlock {
		m.resetRound()
		return
	}
	if bundle.VotedValue != types.EmptyHash {
		if err := m.finalize(bundle.VotedValue, round); err == nil {
			m.resetRound()
			return
		}
	}

	if step >= maxSteps {
		m.resetRound()
		return
	}
	m.mu.Lock()
	m.step++
	m.mu.Unlock()
}

// finalize commits period = m.dag.Period()+1 as an atomic batch: the
// DAG block order under the new anchor (SetOrder's dag→period entries)
// and the PBFT block hash→period entry. The cert-votes, the PBFT block
// body and the chain head are not written. A partial write here is
// impossible to recover from and must be avoided by committing in one
// batch.
func (m *Manager) finalize(pbftHash types.Hash, round uint64) error {
	_ = round
	anchor := m.dag.Anchor()
	period, order, err := m.dag.ComputeOrder(anchor)
	if err != nil {
		return err
	}

	batch := m.db.NewBatch()
	if _, err := m.dag.SetOrder(anchor, period, order, batch); err != nil {
		return err
	}
	if err := batch.Put(storage.ColumnPbftBlockPeriod, pbftHash[:], encodeU64(period)); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return errs.NewStorage("pbft finalize commit", err)
	}

	if _, err := m.exec.Finalize(context.Background(), period, anchor, order); err != nil {
		errs.Abort("executor finalize failed for period %d: %v", period, err)
	}

	m.mu.Lock()
	m.lastPbftHash = pbftHash
	m.mu.Unlock()
	m.met.PeriodsFinalized.Inc()
	return nil
}

// resetRound advances to round+1, step 1, Proposal phase, and cleans
// up vote tables older than the new round.
func (m *Manager) resetRound() {
	m.mu.Lock()
	m.round++
	m.step = 1
	m.phase = PhaseProposal
	m.proposedValid = false
	m.certVotedValid = false
	round := m.round
	m.mu.Unlock()
	m.votes.Cleanup(round)
}

func (m *Manager) advance(next Phase) {
	m.mu.Lock()
	m.phase = next
	m.mu.Unlock()
}

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (56 - 8*i))
	}
	return buf
}
