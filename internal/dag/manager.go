package dag

import (
	"sort"
	"sync"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

// Frontier is the latest pivot/tips pair a proposer should build on
// top of.
type Frontier struct {
	Pivot types.Hash
	Tips  []types.Hash
}

// Manager owns the total DAG, tracks the anchor/period history, and
// computes the total order of a period's blocks from its anchor
// (computeOrder/setOrder). It keeps a level-indexed
// non-finalized-blocks map beside the graph it delegates traversal
// to.
type Manager struct {
	mu sync.RWMutex

	total *Dag

	anchor    types.Hash
	oldAnchor types.Hash
	period    uint64

	// non-finalized blocks, grouped by DAG level, in the order they
	// were added — the same shape computeOrder walks to build a
	// deterministic total order for a freshly-selected anchor.
	nonFinalized map[uint64][]types.Hash
	levelOf      map[types.Hash]uint64
}

// NewManager creates a Manager rooted at genesis.
func NewManager(genesis types.Hash) *Manager {
	return &Manager{
		total:        New(genesis),
		anchor:       genesis,
		nonFinalized: map[uint64][]types.Hash{},
		levelOf:      map[types.Hash]uint64{},
	}
}

// Graph exposes the underlying graph for read-only traversal (ghost
// path, reachability) by the proposer and PBFT packages.
func (m *Manager) Graph() *Dag { return m.total }

// AddBlock inserts blk into the graph and the non-finalized index. It
// enforces the level invariant: level must be exactly one greater than
// the maximum level among pivot and tips.
func (m *Manager) AddBlock(blk *types.DagBlock) error {
	h := blk.Hash()

	pivotLevel, ok := m.total.Level(blk.Pivot)
	if !ok {
		return errs.NewTransient("pivot not present")
	}
	maxLevel := pivotLevel
	for _, t := range blk.Tips {
		l, ok := m.total.Level(t)
		if !ok {
			return errs.NewTransient("tip not present")
		}
		if l > maxLevel {
			maxLevel = l
		}
	}
	if blk.Level != maxLevel+1 {
		return errs.NewValidation("dag block level invariant violated", nil)
	}

	if err := m.total.AddVertex(h, blk.Pivot, blk.Tips, blk.Level); err != nil {
		return err
	}

	m.mu.Lock()
	m.nonFinalized[blk.Level] = append(m.nonFinalized[blk.Level], h)
	m.levelOf[h] = blk.Level
	m.mu.Unlock()
	return nil
}

// GetFrontier returns the current pivot (tip of the ghost path from
// the last anchor) plus every current DAG leaf as candidate tips.
func (m *Manager) GetFrontier() Frontier {
	path := m.total.GhostPath(m.Anchor())
	pivot := path[len(path)-1]
	return Frontier{Pivot: pivot, Tips: m.total.Leaves()}
}

// Anchor returns the anchor of the last finalized period.
func (m *Manager) Anchor() types.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor
}

// Anchors returns (old_anchor, anchor) — the last two period anchors,
// used by PBFT to validate a proposed anchor extends the chain.
func (m *Manager) Anchors() (types.Hash, types.Hash) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oldAnchor, m.anchor
}

// Period returns the last finalized period number.
func (m *Manager) Period() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.period
}

// ComputeOrder computes the deterministic total order of every
// non-finalized block reachable from anchor (inclusive), without
// mutating any state — used by the PBFT manager to build a PBFT block
// proposal and to finalize a period.
func (m *Manager) ComputeOrder(anchor types.Hash) (uint64, []types.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.total.Reachable(m.anchor, anchor) && anchor != m.anchor {
		return 0, nil, errs.NewValidation("anchor does not extend dag", nil)
	}

	var levels []uint64
	for l := range m.nonFinalized {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	ordered := make([]types.Hash, 0)
	for _, l := range levels {
		blocks := append([]types.Hash(nil), m.nonFinalized[l]...)
		sort.Slice(blocks, func(i, j int) bool { return less(blocks[i], blocks[j]) })
		for _, b := range blocks {
			if m.total.Reachable(m.anchor, b) && m.total.Reachable(b, anchor) || b == anchor {
				ordered = append(ordered, b)
			}
		}
	}
	return m.period + 1, ordered, nil
}

// SetOrder finalizes a period: it commits the block order under
// anchor into the write batch (as part of the atomic finalization
// commit the caller assembles), advances the anchor/period, and
// removes the ordered blocks from the non-finalized index. Returns the
// number of blocks ordered.
func (m *Manager) SetOrder(anchor types.Hash, period uint64, order []types.Hash, batch *storage.Batch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if period != m.period+1 {
		return 0, errs.NewValidation("non-contiguous period", nil)
	}

	for i, b := range order {
		key := appendU64(b[:], uint64(i))
		if err := batch.Put(storage.ColumnDagBlockPeriod, key, encodeU64(period)); err != nil {
			return 0, err
		}
	}

	ordered := map[types.Hash]bool{}
	for _, b := range order {
		ordered[b] = true
		delete(m.levelOf, b)
	}
	for l, blocks := range m.nonFinalized {
		kept := blocks[:0]
		for _, b := range blocks {
			if !ordered[b] {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(m.nonFinalized, l)
		} else {
			m.nonFinalized[l] = kept
		}
	}

	m.oldAnchor = m.anchor
	m.anchor = anchor
	m.period = period
	return len(order), nil
}

func appendU64(prefix []byte, v uint64) []byte {
	out := append([]byte(nil), prefix...)
	for i := 0; i < 8; i++ {
		out = append(out, byte(v>>(56-8*i)))
	}
	return out
}

func encodeU64(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (56 - 8*i))
	}
	return out
}
