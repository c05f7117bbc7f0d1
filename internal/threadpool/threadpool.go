// Package threadpool implements the tiered packet thread pool:
// three priority queues (High/Mid/Low), each with a reserved-minimum
// worker count plus a soft-max it can borrow up to from idle capacity
// in the other tiers, and three independent blocking-dependency masks
// (hard, peer-order, DAG-level) that make a packet ineligible for
// dequeue until its dependency clears.
package threadpool

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
)

// Priority is a packet's processing tier.
type Priority int

const (
	High Priority = iota
	Mid
	Low
	numPriorities
)

// PacketType identifies the kind of payload a packet carries, the
// dimension the blocking masks key on.
type PacketType int

// PeerID identifies the peer a packet was received from, used by the
// peer-order blocking dependency.
type PeerID string

// Packet is a unit of work submitted to the pool.
type Packet struct {
	ID       uint64
	Type     PacketType
	Priority Priority
	Peer     PeerID
	Level    uint64 // only meaningful for DAG-block packets
	Handler  func(context.Context) error
}

// blockingMask tracks the three independent dependency dimensions a
// packet type can be blocked on.
type blockingMask struct {
	mu sync.Mutex

	hardBlocked map[PacketType]map[uint64]struct{} // type -> blocking packet IDs

	peerOrderBlocked map[PacketType]map[PeerID]map[uint64]struct{}

	dagLevelsInFlight map[uint64]map[uint64]struct{} // level -> packet IDs
}

func newBlockingMask() *blockingMask {
	return &blockingMask{
		hardBlocked:       map[PacketType]map[uint64]struct{}{},
		peerOrderBlocked:  map[PacketType]map[PeerID]map[uint64]struct{}{},
		dagLevelsInFlight: map[uint64]map[uint64]struct{}{},
	}
}

// MarkHardBlocked records that processing blockingID blocks packetType
// from being dequeued until the blocker finishes (e.g. syncing packets
// must be processed one at a time).
func (m *blockingMask) MarkHardBlocked(packetType PacketType, blockingID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.hardBlocked[packetType]
	if !ok {
		ids = map[uint64]struct{}{}
		m.hardBlocked[packetType] = ids
	}
	ids[blockingID] = struct{}{}
}

// UnmarkHardBlocked releases a hard block once blockingID finishes.
func (m *blockingMask) UnmarkHardBlocked(packetType PacketType, blockingID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids, ok := m.hardBlocked[packetType]; ok {
		delete(ids, blockingID)
		if len(ids) == 0 {
			delete(m.hardBlocked, packetType)
		}
	}
}

// MarkPeerOrderBlocked records that, for peer, packetType must wait
// until blockingID finishes — packets of this type from other peers
// are unaffected (e.g. a new DAG block packet waits on prior
// transaction packets only from the same peer).
func (m *blockingMask) MarkPeerOrderBlocked(packetType PacketType, peer PeerID, blockingID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPeer, ok := m.peerOrderBlocked[packetType]
	if !ok {
		byPeer = map[PeerID]map[uint64]struct{}{}
		m.peerOrderBlocked[packetType] = byPeer
	}
	ids, ok := byPeer[peer]
	if !ok {
		ids = map[uint64]struct{}{}
		byPeer[peer] = ids
	}
	ids[blockingID] = struct{}{}
}

// UnmarkPeerOrderBlocked releases a peer-order block.
func (m *blockingMask) UnmarkPeerOrderBlocked(packetType PacketType, peer PeerID, blockingID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byPeer, ok := m.peerOrderBlocked[packetType]; ok {
		if ids, ok := byPeer[peer]; ok {
			delete(ids, blockingID)
			if len(ids) == 0 {
				delete(byPeer, peer)
			}
		}
		if len(byPeer) == 0 {
			delete(m.peerOrderBlocked, packetType)
		}
	}
}

// SetDagLevelInFlight records that a DAG-block packet at level is
// currently being processed.
func (m *blockingMask) SetDagLevelInFlight(id, level uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.dagLevelsInFlight[level]
	if !ok {
		ids = map[uint64]struct{}{}
		m.dagLevelsInFlight[level] = ids
	}
	ids[id] = struct{}{}
}

// UnsetDagLevelInFlight clears the in-flight marker once id finishes.
func (m *blockingMask) UnsetDagLevelInFlight(id, level uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids, ok := m.dagLevelsInFlight[level]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.dagLevelsInFlight, level)
		}
	}
}

// smallestLevelInFlight returns the lowest DAG level currently being
// processed, and whether any is in flight at all.
func (m *blockingMask) smallestLevelInFlight() (uint64, bool) {
	if len(m.dagLevelsInFlight) == 0 {
		return 0, false
	}
	levels := make([]uint64, 0, len(m.dagLevelsInFlight))
	for l := range m.dagLevelsInFlight {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels[0], true
}

// IsBlocked reports whether p is currently ineligible for processing
// under any of the three dependency dimensions.
func (m *blockingMask) IsBlocked(p Packet, isDagBlockPacket bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ids, ok := m.hardBlocked[p.Type]; ok && len(ids) > 0 {
		return true
	}
	if byPeer, ok := m.peerOrderBlocked[p.Type]; ok {
		if ids, ok := byPeer[p.Peer]; ok && len(ids) > 0 {
			return true
		}
	}
	if isDagBlockPacket {
		if smallest, any := m.smallestLevelInFlight(); any && p.Level > smallest {
			return true
		}
	}
	return false
}

// tierQueue is a single priority's FIFO of pending packets, guarded by
// the pool's shared mutex/condition variable.
type tierQueue struct {
	pending []Packet
}

func (q *tierQueue) pushBack(p Packet) { q.pending = append(q.pending, p) }

// popEligible removes and returns the oldest packet in the queue that
// isBlocked reports as eligible, preserving arrival order for
// everything else.
func (q *tierQueue) popEligible(blocked func(Packet) bool) (Packet, bool) {
	for i, p := range q.pending {
		if !blocked(p) {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return p, true
		}
	}
	return Packet{}, false
}

func (q *tierQueue) empty() bool { return len(q.pending) == 0 }

// Pool is the tiered packet thread pool: High/Mid/Low priority queues,
// each with a reserved worker minimum and a soft-max it may borrow up
// to from idle capacity in the other tiers.
type Pool struct {
	cfg config.ThreadPoolConfig

	mu       sync.Mutex
	cond     *sync.Cond
	queues   [numPriorities]tierQueue
	mask     *blockingMask
	active   [numPriorities]int
	nextID   uint64
	stopped  bool
	dagPktTy PacketType
}

// New creates a Pool sized by cfg. dagBlockPacketType identifies which
// PacketType the DAG-level blocking dependency applies to.
func New(cfg config.ThreadPoolConfig, dagBlockPacketType PacketType) *Pool {
	p := &Pool{cfg: cfg, mask: newBlockingMask(), dagPktTy: dagBlockPacketType}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Mask exposes the blocking mask so handlers can mark/unmark
// dependencies around the work they perform.
func (p *Pool) Mask() *blockingMask { return p.mask }

// reservedFor returns the reserved worker minimum for a tier.
func (p *Pool) reservedFor(pr Priority) int {
	switch pr {
	case High:
		return p.cfg.HighPriorityReserved
	case Mid:
		return p.cfg.MidPriorityReserved
	default:
		return p.cfg.LowPriorityReserved
	}
}

// softMaxFor returns the configured worker count for a tier — the
// most that tier's own dedicated workers provide. Borrowing capacity
// beyond this comes from other tiers sitting idle below their
// reserved minimum's complement.
func (p *Pool) softMaxFor(pr Priority) int {
	switch pr {
	case High:
		return p.cfg.HighPriorityWorkers
	case Mid:
		return p.cfg.MidPriorityWorkers
	default:
		return p.cfg.LowPriorityWorkers
	}
}

func (p *Pool) totalCapacity() int {
	return p.cfg.HighPriorityWorkers + p.cfg.MidPriorityWorkers + p.cfg.LowPriorityWorkers
}

func (p *Pool) totalActive() int {
	return p.active[High] + p.active[Mid] + p.active[Low]
}

// canRunLocked reports whether a worker may start processing another
// packet from tier pr right now: within its soft-max, or — if over
// soft-max — only when capacity stays free after setting aside, for
// every other tier, the part of its reserved minimum it is not using
// (the "borrow idle capacity" rule). Caller must hold p.mu.
func (p *Pool) canRunLocked(pr Priority) bool {
	if p.active[pr] < p.softMaxFor(pr) {
		return true
	}
	free := p.totalCapacity() - p.totalActive()
	for q := Priority(0); q < numPriorities; q++ {
		if q != pr && p.active[q] < p.reservedFor(q) {
			free -= p.reservedFor(q) - p.active[q]
		}
	}
	return free > 0
}

// Submit enqueues a packet for processing by priority.
func (p *Pool) Submit(pk Packet) {
	p.mu.Lock()
	p.nextID++
	pk.ID = p.nextID
	p.queues[pk.Priority].pushBack(pk)
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Run starts the pool's dispatch loop and blocks until ctx is
// cancelled, draining each tier highest-priority-first and honoring
// the reserved/soft-max/borrow rule. It uses an errgroup so a fatal
// handler error can be observed by the caller via the returned error;
// a handler panic is not recovered.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		p.cond.Broadcast()
	}()

	for {
		p.mu.Lock()
		for {
			if p.stopped {
				p.mu.Unlock()
				return g.Wait()
			}
			pr, pk, ok := p.pickLocked()
			if ok {
				p.active[pr]++
				p.mu.Unlock()
				g.Go(func() error {
					err := pk.Handler(ctx)
					p.mu.Lock()
					p.active[pr]--
					p.mu.Unlock()
					p.cond.Broadcast()
					return err
				})
				break
			}
			p.cond.Wait()
		}
	}
}

// pickLocked scans High, then Mid, then Low for the oldest eligible,
// runnable packet. Caller must hold p.mu.
func (p *Pool) pickLocked() (Priority, Packet, bool) {
	for _, pr := range []Priority{High, Mid, Low} {
		if p.queues[pr].empty() || !p.canRunLocked(pr) {
			continue
		}
		pk, ok := p.queues[pr].popEligible(func(pk Packet) bool {
			return p.mask.IsBlocked(pk, pk.Type == p.dagPktTy)
		})
		if ok {
			return pr, pk, true
		}
	}
	return 0, Packet{}, false
}

// Empty reports whether every tier's queue is empty.
func (p *Pool) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.queues {
		if !q.empty() {
			return false
		}
	}
	return true
}
