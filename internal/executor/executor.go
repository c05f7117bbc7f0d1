// Package executor defines the state-transition boundary the PBFT
// finalizer calls into once a period's DAG block order is fixed.
// The consensus core treats the executor as
// the single source of truth for resulting account/ledger state; it
// never inspects transaction contents itself.
package executor

import (
	"context"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

// Result is what the executor reports back after applying a period.
type Result struct {
	StateRoot types.Hash
	GasUsed   uint64
}

// Executor applies the totally-ordered transactions of a finalized
// PBFT period to the ledger. Implementations must be deterministic:
// replaying the same (period, order) must reproduce the same Result on
// every node.
type Executor interface {
	Finalize(ctx context.Context, period uint64, anchor types.Hash, order []types.Hash) (Result, error)
}

// Fake is a deterministic in-memory Executor for tests: it folds the
// period's order into a running state root without touching any real
// ledger, so PBFT/DAG tests can finalize periods without a real VM.
type Fake struct {
	root types.Hash
}

// NewFake returns a Fake rooted at the zero hash.
func NewFake() *Fake { return &Fake{} }

// Finalize deterministically combines the current root with anchor and
// every ordered hash.
func (f *Fake) Finalize(_ context.Context, period uint64, anchor types.Hash, order []types.Hash) (Result, error) {
	buf := make([]byte, 0, 40+32*len(order))
	buf = append(buf, f.root[:]...)
	buf = append(buf, anchor[:]...)
	for _, h := range order {
		buf = append(buf, h[:]...)
	}
	buf = appendU64(buf, period)
	f.root = types.Sha3(buf)
	return Result{StateRoot: f.root, GasUsed: uint64(len(order)) * 21000}, nil
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(56-8*i)))
	}
	return buf
}
