package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDagBlockHashChangesWithSignature(t *testing.T) {
	blk := &DagBlock{
		Pivot:     Sha3([]byte("pivot")),
		Level:     3,
		Timestamp: 100,
		Tips:      []Hash{Sha3([]byte("tip1"))},
		Trxs:      []Hash{Sha3([]byte("tx1"))},
	}
	signed := blk.SignedHash()

	blk.Signature = Signature{1, 2, 3}
	blk.ResetHashCache()
	h1 := blk.Hash()

	blk.Signature = Signature{9, 9, 9}
	blk.ResetHashCache()
	h2 := blk.Hash()

	require.NotEqual(t, h1, h2, "changing the signature must change the block hash")
	require.NotEqual(t, signed, h1, "the signed hash excludes the signature")
}

func TestDagBlockHashMemoized(t *testing.T) {
	blk := &DagBlock{Pivot: Sha3([]byte("pivot")), Level: 1}
	h1 := blk.Hash()
	blk.Level = 999 // mutate without resetting the cache
	h2 := blk.Hash()
	require.Equal(t, h1, h2, "Hash must return the memoized value until ResetHashCache is called")
}

func TestDagBlockHashDeterministic(t *testing.T) {
	build := func() *DagBlock {
		return &DagBlock{
			Pivot:     Sha3([]byte("pivot")),
			Level:     2,
			Timestamp: 7,
			Tips:      []Hash{Sha3([]byte("a")), Sha3([]byte("b"))},
			Trxs:      []Hash{Sha3([]byte("tx"))},
			Signature: Signature{5, 6, 7},
		}
	}
	require.Equal(t, build().Hash(), build().Hash())
}

func TestPbftBlockSignedHashExcludesSignature(t *testing.T) {
	blk := &PbftBlock{
		PrevHash:   Sha3([]byte("prev")),
		AnchorHash: Sha3([]byte("anchor")),
		Period:     5,
		Timestamp:  42,
	}
	signed := blk.SignedHash()
	blk.Signature = Signature{1}
	require.NotEqual(t, signed, blk.Hash())
	require.Equal(t, signed, blk.SignedHash())
}

func TestAddressIsZero(t *testing.T) {
	var a Address
	require.True(t, a.IsZero())
	a[0] = 1
	require.False(t, a.IsZero())
}

func TestSha3Deterministic(t *testing.T) {
	require.Equal(t, Sha3([]byte("x")), Sha3([]byte("x")))
	require.NotEqual(t, Sha3([]byte("x")), Sha3([]byte("y")))
}
