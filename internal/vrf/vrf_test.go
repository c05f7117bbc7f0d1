package vrf

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	alpha := []byte("propose|1|1|0")
	beta, pi, err := Prove(sk, alpha)
	require.NoError(t, err)
	require.NotEmpty(t, beta)
	require.NotEmpty(t, pi)

	got, err := Verify(sk.PublicKey(), alpha, pi)
	require.NoError(t, err)
	require.Equal(t, beta, got)
}

func TestVerifyRejectsWrongAlpha(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	_, pi, err := Prove(sk, []byte("alpha-a"))
	require.NoError(t, err)

	_, err = Verify(sk.PublicKey(), []byte("alpha-b"), pi)
	require.Error(t, err)
}

func TestThresholdSaturatesWhenCommitteeCoversEveryone(t *testing.T) {
	th := Threshold(1000, 100)
	maxHash := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.Equal(t, 0, th.Cmp(maxHash))
}

func TestThresholdMonotonicInCommitteeSize(t *testing.T) {
	small := Threshold(10, 10000)
	large := Threshold(100, 10000)
	require.Equal(t, -1, small.Cmp(large))
}

func TestCanSpeakRejectsZeroWeight(t *testing.T) {
	th := Threshold(10, 100)
	require.False(t, CanSpeak([]byte{0xFF}, 0, th))
}

func TestCanSpeakAlwaysTrueAtMaxThreshold(t *testing.T) {
	th := Threshold(100, 100) // everyone eligible: threshold saturates to MAX_HASH
	beta := make([]byte, 32)
	for i := range beta {
		beta[i] = 0xFF
	}
	require.True(t, CanSpeak(beta, 1, th))
}

func TestWeightedCountNeverExceedsWeight(t *testing.T) {
	th := Threshold(1, 2) // a tight threshold
	beta := []byte("some vrf output bytes")
	count := WeightedCount(beta, 5, th)
	require.LessOrEqual(t, count, uint64(5))
}
