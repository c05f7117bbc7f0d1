package vdf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
)

func testConfig() Config {
	return Config{
		ThresholdSelection: 0xFFFF, // never stale, so Compute always runs the delay proof
		ThresholdOmit:      0,      // never omit
		DifficultyMin:      4,      // small enough to keep sequential squaring fast in tests
		DifficultyMax:      6,
		DifficultyStale:    5,
	}
}

func ticket(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func TestComputeVerifyRoundTrip(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	cfg := testConfig()
	msg := []byte("dag block signed payload")

	sol, err := Compute(cfg, sk, msg)
	require.NoError(t, err)
	require.NotEmpty(t, sol.Pi)
	require.NotEmpty(t, sol.L)

	require.NoError(t, Verify(cfg, sol, msg))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	cfg := testConfig()

	sol, err := Compute(cfg, sk, []byte("original"))
	require.NoError(t, err)

	require.Error(t, Verify(cfg, sol, []byte("tampered")))
}

func TestOmitProducesEmptySolutionThatStillVerifies(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ThresholdOmit = 0xFFFF // every ticket clears the omit band
	msg := []byte("dag block signed payload")

	sol, err := Compute(cfg, sk, msg)
	require.NoError(t, err)
	require.Zero(t, sol.Difficulty)
	require.Empty(t, sol.Pi)
	require.Empty(t, sol.L)

	require.NoError(t, Verify(cfg, sol, msg))
}

func TestOmitVdfGatesOnSelectionTicket(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdOmit = 0x8000

	require.True(t, OmitVdf(cfg, ticket(0x0001)))
	require.True(t, OmitVdf(cfg, ticket(0x8000)))
	require.False(t, OmitVdf(cfg, ticket(0x8001)))
}

func TestIsStale(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdSelection = 2

	require.False(t, IsStale(cfg, ticket(1)))
	require.False(t, IsStale(cfg, ticket(2)))
	require.True(t, IsStale(cfg, ticket(3)))
}

func TestDifficultyOmitBand(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdOmit = 0x8000

	require.Zero(t, Difficulty(cfg, ticket(0x4000)))
}

func TestDifficultyStaleBand(t *testing.T) {
	cfg := testConfig()
	cfg.ThresholdOmit = 0
	cfg.ThresholdSelection = 0x8000

	require.Equal(t, cfg.DifficultyStale, Difficulty(cfg, ticket(0x8001)))
}

func TestDifficultyWithinBounds(t *testing.T) {
	cfg := testConfig()
	for _, tk := range []uint16{0x0001, 0x7FFF, 0xFFFE} {
		d := Difficulty(cfg, ticket(tk))
		require.GreaterOrEqual(t, d, cfg.DifficultyMin)
		require.LessOrEqual(t, d, cfg.DifficultyMax)
	}
}
