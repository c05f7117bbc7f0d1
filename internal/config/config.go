// Package config holds the validated runtime parameters for every
// consensus component: PBFT round timing, committee sizing, VDF
// difficulty bounds, and packet thread-pool worker counts.
package config

import (
	"errors"
	"time"
)

// Validation errors for consensus parameters, mirroring the style the
// corpus uses for its own parameter validation.
var (
	ErrLambdaTooLow        = errors.New("lambda must be >= 1ms")
	ErrCommitteeSizeZero   = errors.New("committee size must be >= 1")
	ErrInvalidVdfBounds    = errors.New("vdf difficulty_min must be <= difficulty_max")
	ErrInvalidThreadCounts = errors.New("thread pool worker counts must be >= 1")
)

// PbftConfig bounds the five-phase PBFT round state machine.
type PbftConfig struct {
	Lambda               time.Duration // base phase duration
	CommitteeSize        uint64        // C, the sortition committee size
	MaxRoundsPerPeriod   uint64
	DagBlocksSize        uint64 // max dag blocks per pbft pivot block proposal
}

// DefaultPbftConfig returns production-tuned default PBFT parameters.
func DefaultPbftConfig() PbftConfig {
	return PbftConfig{
		Lambda:             1500 * time.Millisecond,
		CommitteeSize:      1000,
		MaxRoundsPerPeriod: 1,
		DagBlocksSize:      100,
	}
}

// Validate checks the PBFT parameters are internally consistent.
func (c PbftConfig) Validate() error {
	if c.Lambda < time.Millisecond {
		return ErrLambdaTooLow
	}
	if c.CommitteeSize == 0 {
		return ErrCommitteeSizeZero
	}
	return nil
}

// VdfConfig mirrors vdf.Config but lives alongside the rest of the
// node's runtime configuration so it can be loaded/validated in one
// place (vdf.Config itself stays dependency-free).
type VdfConfig struct {
	ThresholdSelection uint16
	ThresholdOmit      uint16
	DifficultyMin      uint16
	DifficultyMax      uint16
	DifficultyStale    uint16
	LambdaBound        uint16
}

// DefaultVdfConfig returns production-tuned default VDF bounds.
func DefaultVdfConfig() VdfConfig {
	return VdfConfig{
		ThresholdSelection: 0xFFFF,
		ThresholdOmit:      1,
		DifficultyMin:      16,
		DifficultyMax:      21,
		DifficultyStale:    20,
		LambdaBound:        1500,
	}
}

// Validate checks the VDF bounds are sane.
func (c VdfConfig) Validate() error {
	if c.DifficultyMin > c.DifficultyMax {
		return ErrInvalidVdfBounds
	}
	return nil
}

// ThreadPoolConfig sizes the tiered packet thread pool.
type ThreadPoolConfig struct {
	HighPriorityWorkers   int
	MidPriorityWorkers    int
	LowPriorityWorkers    int
	HighPriorityReserved  int
	MidPriorityReserved   int
	LowPriorityReserved   int
	QueueCapacity         int
}

// DefaultThreadPoolConfig returns sensible worker/reserve counts for a
// single node using the reserved-minimum + soft-max + borrowing model.
func DefaultThreadPoolConfig() ThreadPoolConfig {
	return ThreadPoolConfig{
		HighPriorityWorkers:  4,
		MidPriorityWorkers:   4,
		LowPriorityWorkers:   2,
		HighPriorityReserved: 2,
		MidPriorityReserved:  1,
		LowPriorityReserved:  1,
		QueueCapacity:        10000,
	}
}

// Validate checks the thread pool sizing is usable.
func (c ThreadPoolConfig) Validate() error {
	if c.HighPriorityWorkers < 1 || c.MidPriorityWorkers < 1 || c.LowPriorityWorkers < 1 {
		return ErrInvalidThreadCounts
	}
	return nil
}

// Config bundles every component's validated configuration.
type Config struct {
	Pbft       PbftConfig
	Vdf        VdfConfig
	ThreadPool ThreadPoolConfig
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		Pbft:       DefaultPbftConfig(),
		Vdf:        DefaultVdfConfig(),
		ThreadPool: DefaultThreadPoolConfig(),
	}
}

// Validate validates every sub-configuration.
func (c Config) Validate() error {
	if err := c.Pbft.Validate(); err != nil {
		return err
	}
	if err := c.Vdf.Validate(); err != nil {
		return err
	}
	if err := c.ThreadPool.Validate(); err != nil {
		return err
	}
	return nil
}
