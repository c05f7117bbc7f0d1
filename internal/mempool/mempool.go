// Package mempool declares the collaborator interface the block
// proposer pulls pending transactions from. A real
// mempool — admission control, fee ranking, eviction — is out of
// scope; the consensus core only needs to ask for a batch to pack and
// to check whether it already has a given hash.
package mempool

import "github.com/Taraxa-project/taraxa-node-sub003/internal/types"

// Reader is the read-only surface the proposer needs from a mempool.
type Reader interface {
	// PackTransactions returns up to max pending transaction hashes to
	// include in a new DAG block.
	PackTransactions(max int) []types.Hash
	// Has reports whether h is a known transaction.
	Has(h types.Hash) bool
}
