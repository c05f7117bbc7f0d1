package vote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

func TestWeightBagMode(t *testing.T) {
	bag := NewWeightBag[types.Hash]()
	a := types.Sha3([]byte("a"))
	b := types.Sha3([]byte("b"))

	bag.AddWeight(a, 3)
	bag.AddWeight(b, 7)
	bag.AddWeight(a, 1)

	mode, weight := bag.Mode()
	require.Equal(t, b, mode)
	require.Equal(t, uint64(7), weight)
	require.Equal(t, uint64(4), bag.Weight(a))
	require.Equal(t, uint64(11), bag.TotalWeight())
}

func TestWeightBagIgnoresZeroWeight(t *testing.T) {
	bag := NewWeightBag[types.Hash]()
	a := types.Sha3([]byte("a"))
	bag.AddWeight(a, 0)
	require.Equal(t, uint64(0), bag.TotalWeight())
	require.Empty(t, bag.List())
}

func TestWeightBagList(t *testing.T) {
	bag := NewWeightBag[types.Hash]()
	a := types.Sha3([]byte("a"))
	b := types.Sha3([]byte("b"))
	bag.AddWeight(a, 1)
	bag.AddWeight(b, 1)
	require.ElementsMatch(t, []types.Hash{a, b}, bag.List())
}
