package dagmgr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/dag"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vdf"
)

type alwaysHasMempool struct{}

func (alwaysHasMempool) PackTransactions(int) []types.Hash { return nil }
func (alwaysHasMempool) Has(types.Hash) bool                { return true }

func testVdfConfig() vdf.Config {
	return vdf.Config{ThresholdSelection: 0xFFFF, ThresholdOmit: 0xFFFF, DifficultyMin: 2, DifficultyMax: 4, DifficultyStale: 3}
}

func signedBlock(t *testing.T, sk *crypto.PrivateKey, pivot types.Hash, level uint64, vdfCfg vdf.Config) *types.DagBlock {
	t.Helper()
	blk := &types.DagBlock{
		Pivot:     pivot,
		Level:     level,
		Timestamp: 1,
		Producer:  crypto.Address(sk.PublicKey()),
	}
	msg := make([]byte, len(pivot)+8)
	copy(msg, pivot[:])
	binary.BigEndian.PutUint64(msg[len(pivot):], level)
	sol, err := vdf.Compute(vdfCfg, sk, msg)
	require.NoError(t, err)
	blk.Vdf = types.VdfSolution{
		VrfPublicKey: sol.VrfPublicKey[:],
		VrfProof:     sol.VrfProof,
		ProofPi:      sol.Pi,
		ProofL:       sol.L,
		Difficulty:   sol.Difficulty,
	}
	sig, err := crypto.Sign(sk, blk.SignedHash())
	require.NoError(t, err)
	blk.Signature = sig
	blk.ResetHashCache()
	return blk
}

func TestVerifyBlockAcceptsValidBlock(t *testing.T) {
	genesis := types.Sha3([]byte("genesis"))
	graph := dag.NewManager(genesis)
	vdfCfg := testVdfConfig()

	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	m := New(graph, vdfCfg, alwaysHasMempool{}, config.DefaultThreadPoolConfig())
	blk := signedBlock(t, sk, genesis, 1, vdfCfg)

	m.verifyBlock(blk)

	status, ok := m.Status(blk.Hash())
	require.True(t, ok)
	require.Equal(t, StatusProposed, status)
	require.True(t, graph.Graph().HasVertex(blk.Hash()))
}

func TestVerifyBlockRejectsBadSignature(t *testing.T) {
	genesis := types.Sha3([]byte("genesis"))
	graph := dag.NewManager(genesis)
	vdfCfg := testVdfConfig()

	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	m := New(graph, vdfCfg, alwaysHasMempool{}, config.DefaultThreadPoolConfig())
	blk := signedBlock(t, sk, genesis, 1, vdfCfg)
	blk.Signature[0] ^= 0xFF

	m.verifyBlock(blk)

	status, ok := m.Status(blk.Hash())
	require.True(t, ok)
	require.Equal(t, StatusInvalid, status)
}

func TestVerifyBlockRequeuesOnMissingPivot(t *testing.T) {
	genesis := types.Sha3([]byte("genesis"))
	graph := dag.NewManager(genesis)
	vdfCfg := testVdfConfig()

	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	m := New(graph, vdfCfg, alwaysHasMempool{}, config.DefaultThreadPoolConfig())
	missingPivot := types.Sha3([]byte("missing"))
	blk := signedBlock(t, sk, missingPivot, 1, vdfCfg)

	m.verifyBlock(blk)

	unv, ver := m.QueueSizes()
	require.Equal(t, 1, unv)
	require.Equal(t, 0, ver)
}

func TestMarkSeenOnlyOnce(t *testing.T) {
	genesis := types.Sha3([]byte("genesis"))
	graph := dag.NewManager(genesis)
	m := New(graph, testVdfConfig(), alwaysHasMempool{}, config.DefaultThreadPoolConfig())

	h := types.Sha3([]byte("x"))
	require.True(t, m.MarkSeen(h))
	require.False(t, m.MarkSeen(h))
}
