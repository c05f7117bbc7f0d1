package pbft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/executor"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vote"
)

type singleMemberDpos struct {
	addr   types.Address
	weight types.Weight
}

func (d singleMemberDpos) TotalEligibleVotes() types.Weight { return d.weight }
func (d singleMemberDpos) EligibleVotesForAddress(a types.Address) types.Weight {
	if a == d.addr {
		return d.weight
	}
	return 0
}
func (d singleMemberDpos) IsEligible(a types.Address) bool { return a == d.addr }

func newTestManager(t *testing.T) (*Manager, *crypto.PrivateKey) {
	t.Helper()
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	genesis := types.Sha3([]byte("genesis"))
	dagMgr := dag.NewManager(genesis)
	dpos := singleMemberDpos{addr: crypto.Address(sk.PublicKey()), weight: 1}
	votes := vote.NewManager(dpos)

	cfg := config.DefaultPbftConfig()
	cfg.Lambda = time.Millisecond
	cfg.CommitteeSize = 1

	m := New(cfg, sk, db, dagMgr, votes, executor.NewFake(), dpos, genesis)
	return m, sk
}

func TestNewManagerStartsAtRoundOne(t *testing.T) {
	m, _ := newTestManager(t)
	require.Equal(t, uint64(1), m.Round())
	require.Equal(t, uint64(1), m.Step())
}

func TestUpdateTwoTPlusOneSaturatesAtCommitteeSize(t *testing.T) {
	m, _ := newTestManager(t)
	m.updateTwoTPlusOneAndThreshold()
	// committee size 1, total weight 1: effective=1, 2t+1 = 1*2/3+1 = 1
	require.Equal(t, types.Weight(1), m.twoTPlusOne)
}

func TestSingleNodeRoundReachesFinalization(t *testing.T) {
	m, _ := newTestManager(t)

	// A single-member committee always clears sortition (threshold saturates),
	// so driving the five phases once should finalize period 1.
	for i := 0; i < 5; i++ {
		m.stateOperations()
	}

	require.Equal(t, uint64(2), m.Round(), "round should have advanced past finalization")
}

func TestPlaceVoteFeedsVoteManager(t *testing.T) {
	m, _ := newTestManager(t)
	m.updateTwoTPlusOneAndThreshold()

	s, err := vote.NewSortition(m.sk, vote.TypePropose, 1, 1, 0)
	require.NoError(t, err)
	blockHash := types.Sha3([]byte("block"))

	m.placeVote(blockHash, s)

	bundle := m.votes.VotesBundleForStep(1, 1, 1)
	require.True(t, bundle.Enough)
	require.Equal(t, blockHash, bundle.VotedHash)
}
