package vote

import (
	"sync"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

// DposReader is the collaborator a vote manager asks for eligibility
// and weight data — kept as an interface so the consensus core never
// depends on a concrete staking/ledger package.
type DposReader interface {
	TotalEligibleVotes() types.Weight
	EligibleVotesForAddress(types.Address) types.Weight
	IsEligible(types.Address) bool
}

// Bundle holds votes for a single (round, step) voted on the same
// value, taken in arrival order until their combined weight reaches
// 2t+1.
type Bundle struct {
	Enough    bool
	VotedHash types.Hash
	Votes     []*Vote
}

// roundStep keys the verified-vote table by (round, step).
type roundStep struct {
	round uint64
	step  uint64
}

// Manager owns the unverified/verified vote tables and the
// previous-round next-votes carry-over bundle.
type Manager struct {
	mu sync.RWMutex

	unverified map[uint64]map[types.Hash]*Vote // round -> vote hash -> vote
	verified   map[roundStep]map[types.Hash][]*Vote // (round,step) -> voted value -> votes

	dpos DposReader
	met  *metrics.Metrics

	nextVotesMu       sync.RWMutex
	nextVotesForValue map[types.Hash][]*Vote
	nextVotesSeen     map[types.Hash]bool
}

// NewManager creates an empty Manager backed by dpos for eligibility
// and weight lookups.
func NewManager(dpos DposReader) *Manager {
	return &Manager{
		unverified:        map[uint64]map[types.Hash]*Vote{},
		verified:          map[roundStep]map[types.Hash][]*Vote{},
		dpos:              dpos,
		met:               metrics.Noop(),
		nextVotesForValue: map[types.Hash][]*Vote{},
		nextVotesSeen:     map[types.Hash]bool{},
	}
}

// SetMetrics attaches the node-wide metrics collectors this manager
// reports tallied vote counts to.
func (m *Manager) SetMetrics(met *metrics.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.met = met
}

// AddUnverifiedVote stages v for later batch verification, keyed by
// its round. Returns false if a vote with the same hash is already
// staged.
func (m *Manager) AddUnverifiedVote(v *Vote) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	round := v.Sortition.Round
	bucket, ok := m.unverified[round]
	if !ok {
		bucket = map[types.Hash]*Vote{}
		m.unverified[round] = bucket
	}
	h := v.Hash()
	if _, exists := bucket[h]; exists {
		return false
	}
	bucket[h] = v
	return true
}

// UnverifiedVotes returns every staged vote across all rounds.
func (m *Manager) UnverifiedVotes() []*Vote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Vote
	for _, bucket := range m.unverified {
		for _, v := range bucket {
			out = append(out, v)
		}
	}
	return out
}

// VerifyBatch verifies every unverified vote for round: signature,
// VRF proof, and sortition threshold. Votes that
// fail validation are dropped; votes that pass move to the verified
// table, which is where tallying and VotesBundleForStep read from.
func (m *Manager) VerifyBatch(round uint64, threshold types.Weight) {
	m.mu.Lock()
	bucket := m.unverified[round]
	delete(m.unverified, round)
	m.mu.Unlock()

	for _, v := range bucket {
		addr, ok := v.Voter()
		if !ok || !m.dpos.IsEligible(addr) {
			continue
		}
		weight := m.dpos.EligibleVotesForAddress(addr)
		if weight == 0 {
			continue
		}
		if err := v.VerifySortition(threshold, m.dpos.TotalEligibleVotes()); err != nil {
			continue
		}
		m.addVerified(v)
	}
}

func (m *Manager) addVerified(v *Vote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundStep{round: v.Sortition.Round, step: v.Sortition.Step}
	byValue, ok := m.verified[key]
	if !ok {
		byValue = map[types.Hash][]*Vote{}
		m.verified[key] = byValue
	}
	byValue[v.BlockHash] = append(byValue[v.BlockHash], v)
	m.met.VotesTallied.Inc()
}

// VotesBundleForStep tallies verified votes at (round, step) and
// returns a Bundle once any single value has accumulated at least
// twoTPlusOne weighted votes.
func (m *Manager) VotesBundleForStep(round, step uint64, twoTPlusOne types.Weight) Bundle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byValue := m.verified[roundStep{round: round, step: step}]
	bag := NewWeightBag[types.Hash]()
	votesByValue := map[types.Hash][]*Vote{}
	for val, votes := range byValue {
		for _, v := range votes {
			w := m.dpos.EligibleVotesForAddress(mustVoter(v))
			bag.AddWeight(val, w)
			votesByValue[val] = append(votesByValue[val], v)
		}
	}
	val, weight := bag.Mode()
	if weight < twoTPlusOne {
		return Bundle{}
	}
	var picked []*Vote
	var acc types.Weight
	for _, v := range votesByValue[val] {
		if acc >= twoTPlusOne {
			break
		}
		picked = append(picked, v)
		acc += m.dpos.EligibleVotesForAddress(mustVoter(v))
	}
	return Bundle{Enough: true, VotedHash: val, Votes: picked}
}

func mustVoter(v *Vote) types.Address {
	addr, _ := v.Voter()
	return addr
}

// VotesForRound returns every verified vote of type t for round,
// across all steps — used to gather next-votes for the carry-over
// bundle, which may accumulate across several polling steps.
func (m *Manager) VotesForRound(round uint64, t Type) []*Vote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Vote
	for key, byValue := range m.verified {
		if key.round != round {
			continue
		}
		for _, votes := range byValue {
			for _, v := range votes {
				if v.Sortition.Type == t {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// DetermineRound scans verified next-votes to find the largest round
// r such that round r's next-step tally reached twoTPlusOne — the
// asynchrony-recovery rule that lets a node catch up to the network's
// actual round.
func (m *Manager) DetermineRound(twoTPlusOne types.Weight) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best uint64
	found := false
	for key, byValue := range m.verified {
		bag := NewWeightBag[types.Hash]()
		for val, votes := range byValue {
			var w types.Weight
			for _, v := range votes {
				if v.Sortition.Type != TypeNext {
					continue
				}
				w += m.dpos.EligibleVotesForAddress(mustVoter(v))
			}
			bag.AddWeight(val, w)
		}
		_, weight := bag.Mode()
		if weight >= twoTPlusOne && (!found || key.round > best) {
			best = key.round
			found = true
		}
	}
	return best, found
}

// Cleanup drops every table entry for rounds strictly older than
// round — called once a round finalizes to bound memory.
func (m *Manager) Cleanup(round uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for r := range m.unverified {
		if r < round {
			delete(m.unverified, r)
		}
	}
	for key := range m.verified {
		if key.round < round {
			delete(m.verified, key)
		}
	}
}

// VerifyCertForBlock checks that a PBFT block certificate carries at
// least twoTPlusOne weighted cert-votes, all for blockHash, all
// individually valid.
func (m *Manager) VerifyCertForBlock(votes []*Vote, blockHash types.Hash, threshold, twoTPlusOne types.Weight) error {
	bag := NewWeightBag[types.Hash]()
	for _, v := range votes {
		if v.Sortition.Type != TypeCert || v.BlockHash != blockHash {
			return errs.NewValidation("cert vote for wrong block or wrong type", nil)
		}
		addr, ok := v.Voter()
		if !ok || !m.dpos.IsEligible(addr) {
			return errs.NewValidation("cert vote from ineligible voter", nil)
		}
		if err := v.VerifySortition(threshold, m.dpos.TotalEligibleVotes()); err != nil {
			return err
		}
		bag.AddWeight(blockHash, m.dpos.EligibleVotesForAddress(addr))
	}
	if bag.Weight(blockHash) < twoTPlusOne {
		return errs.NewValidation("insufficient cert votes", nil)
	}
	return nil
}

// NextVotesBundle is the previous round's next-votes carry-over: the
// single value with the most next-vote weight, once that weight
// reaches 2t+1, and the votes for it. Other values are not kept, and
// the bundle is not fed into the next round's filter/certify steps.
type NextVotesBundle struct {
	EnoughForNullBlock bool
	VotedValue         types.Hash
	Votes              []*Vote
}

// SetNextVotes replaces the carried-over next-votes bundle for the
// round that just finished, deduplicating by vote hash.
func (m *Manager) SetNextVotes(votes []*Vote, twoTPlusOne types.Weight) NextVotesBundle {
	m.nextVotesMu.Lock()
	defer m.nextVotesMu.Unlock()

	m.nextVotesForValue = map[types.Hash][]*Vote{}
	m.nextVotesSeen = map[types.Hash]bool{}

	bag := NewWeightBag[types.Hash]()
	for _, v := range votes {
		h := v.Hash()
		if m.nextVotesSeen[h] {
			continue
		}
		m.nextVotesSeen[h] = true
		m.nextVotesForValue[v.BlockHash] = append(m.nextVotesForValue[v.BlockHash], v)
		bag.AddWeight(v.BlockHash, m.dpos.EligibleVotesForAddress(mustVoter(v)))
	}

	val, weight := bag.Mode()
	if weight < twoTPlusOne {
		return NextVotesBundle{}
	}
	return NextVotesBundle{
		EnoughForNullBlock: val == types.EmptyHash,
		VotedValue:         val,
		Votes:              m.nextVotesForValue[val],
	}
}

// NextVotesSize returns how many distinct next-votes are carried over.
func (m *Manager) NextVotesSize() int {
	m.nextVotesMu.RLock()
	defer m.nextVotesMu.RUnlock()
	return len(m.nextVotesSeen)
}
