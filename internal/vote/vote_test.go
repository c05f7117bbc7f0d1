package vote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

func TestSortitionVerify(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	s, err := NewSortition(sk, TypePropose, 1, 1, 0)
	require.NoError(t, err)
	require.True(t, s.Verify())

	s.Output[0] ^= 0xFF
	require.False(t, s.Verify())
}

func TestSignAndVoterRecovery(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	s, err := NewSortition(sk, TypeSoft, 2, 2, 0)
	require.NoError(t, err)

	blockHash := types.Sha3([]byte("block"))
	v, err := Sign(sk, blockHash, s)
	require.NoError(t, err)

	addr, ok := v.Voter()
	require.True(t, ok)
	require.Equal(t, crypto.Address(sk.PublicKey()), addr)
}

func TestVoterFailsOnTamperedSignature(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	s, err := NewSortition(sk, TypeCert, 1, 3, 0)
	require.NoError(t, err)

	v, err := Sign(sk, types.Sha3([]byte("block")), s)
	require.NoError(t, err)
	v.Signature[0] ^= 0xFF

	_, ok := v.Voter()
	require.False(t, ok)
}

func TestVoteHashMemoized(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	s, err := NewSortition(sk, TypeNext, 1, 4, 0)
	require.NoError(t, err)
	v, err := Sign(sk, types.Sha3([]byte("block")), s)
	require.NoError(t, err)

	h1 := v.Hash()
	v.BlockHash = types.Sha3([]byte("other"))
	require.Equal(t, h1, v.Hash())
}

func TestVerifySortitionRejectsBelowThreshold(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	s, err := NewSortition(sk, TypePropose, 1, 1, 0)
	require.NoError(t, err)
	v, err := Sign(sk, types.Sha3([]byte("block")), s)
	require.NoError(t, err)

	// threshold=1 out of a huge committee means almost nobody clears the bar.
	err = v.VerifySortition(1, 1<<32)
	require.Error(t, err)
}

func TestVerifySortitionAcceptsSaturatedThreshold(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	s, err := NewSortition(sk, TypePropose, 1, 1, 0)
	require.NoError(t, err)
	v, err := Sign(sk, types.Sha3([]byte("block")), s)
	require.NoError(t, err)

	// committee size >= total weight saturates the threshold: everyone can speak.
	require.NoError(t, v.VerifySortition(10, 10))
}
