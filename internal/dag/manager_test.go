package dag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

func blockAt(pivot types.Hash, tips []types.Hash, level uint64) *types.DagBlock {
	return &types.DagBlock{Pivot: pivot, Tips: tips, Level: level, Timestamp: 1}
}

func TestAddBlockEnforcesLevelInvariant(t *testing.T) {
	genesis := hashOf("genesis")
	m := NewManager(genesis)

	blk := blockAt(genesis, nil, 5) // should be 1, not 5
	err := m.AddBlock(blk)
	require.Error(t, err)
}

func TestAddBlockAcceptsCorrectLevel(t *testing.T) {
	genesis := hashOf("genesis")
	m := NewManager(genesis)

	blk := blockAt(genesis, nil, 1)
	require.NoError(t, m.AddBlock(blk))
	require.True(t, m.Graph().HasVertex(blk.Hash()))
}

func TestGetFrontierAfterBlocks(t *testing.T) {
	genesis := hashOf("genesis")
	m := NewManager(genesis)

	b1 := blockAt(genesis, nil, 1)
	require.NoError(t, m.AddBlock(b1))

	f := m.GetFrontier()
	require.Equal(t, b1.Hash(), f.Pivot)
	require.Contains(t, f.Tips, b1.Hash())
}

func TestComputeOrderThenSetOrderAdvancesPeriod(t *testing.T) {
	genesis := hashOf("genesis")
	m := NewManager(genesis)

	b1 := blockAt(genesis, nil, 1)
	require.NoError(t, m.AddBlock(b1))
	b2 := blockAt(b1.Hash(), nil, 2)
	require.NoError(t, m.AddBlock(b2))

	period, order, err := m.ComputeOrder(b2.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(1), period)
	require.Equal(t, []types.Hash{b1.Hash(), b2.Hash()}, order)

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	batch := db.NewBatch()

	n, err := m.SetOrder(b2.Hash(), period, order, batch)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, batch.Commit())

	require.Equal(t, uint64(1), m.Period())
	require.Equal(t, b2.Hash(), m.Anchor())
}

func TestSetOrderRejectsNonContiguousPeriod(t *testing.T) {
	genesis := hashOf("genesis")
	m := NewManager(genesis)

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	batch := db.NewBatch()

	_, err = m.SetOrder(genesis, 5, nil, batch)
	require.Error(t, err)
}
