package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestPbftConfigRejectsLowLambda(t *testing.T) {
	cfg := DefaultPbftConfig()
	cfg.Lambda = 0
	require.ErrorIs(t, cfg.Validate(), ErrLambdaTooLow)
}

func TestPbftConfigRejectsZeroCommittee(t *testing.T) {
	cfg := DefaultPbftConfig()
	cfg.CommitteeSize = 0
	require.ErrorIs(t, cfg.Validate(), ErrCommitteeSizeZero)
}

func TestVdfConfigRejectsInvertedBounds(t *testing.T) {
	cfg := DefaultVdfConfig()
	cfg.DifficultyMin = 30
	cfg.DifficultyMax = 10
	require.ErrorIs(t, cfg.Validate(), ErrInvalidVdfBounds)
}

func TestThreadPoolConfigRejectsZeroWorkers(t *testing.T) {
	cfg := DefaultThreadPoolConfig()
	cfg.LowPriorityWorkers = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidThreadCounts)
}

func TestDefaultPbftConfigLambda(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, DefaultPbftConfig().Lambda)
}
