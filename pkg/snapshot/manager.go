// Package snapshot provides snapshot management for the simulator.
package snapshot

import (
	"sync"

	"github.com/stable-net/simnode-go/pkg/blockchain"
	"github.com/stable-net/simnode-go/pkg/clock"
)

// Snapshot holds a point-in-time capture of the node state: the chain
// head plus the clock fields that shape future blocks.
type Snapshot struct {
	ID                 uint64
	BlockNumber        uint64
	TimeOffset         uint64
	NextBlockTimestamp uint64
}

// Manager manages node state snapshots. IDs are issued monotonically
// starting at 1; reverting to an id invalidates it and every later id.
type Manager struct {
	chain *blockchain.Chain
	clock *clock.Clock

	snapshots map[uint64]*Snapshot
	nextID    uint64

	mu sync.RWMutex
}

// NewManager creates a new snapshot manager.
func NewManager(chain *blockchain.Chain, clk *clock.Clock) *Manager {
	return &Manager{
		chain:     chain,
		clock:     clk,
		snapshots: make(map[uint64]*Snapshot),
		nextID:    1,
	}
}

// Take creates a new snapshot and returns its ID.
func (m *Manager) Take() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		ID:                 m.nextID,
		BlockNumber:        m.chain.BlockNumber(),
		TimeOffset:         m.clock.Offset(),
		NextBlockTimestamp: m.clock.NextBlockTimestamp(),
	}

	m.snapshots[m.nextID] = snap
	m.nextID++

	return snap.ID
}

// Revert restores the state captured under the given ID. Returns false
// if the ID is unknown or was invalidated by an earlier revert.
func (m *Manager) Revert(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, exists := m.snapshots[id]
	if !exists {
		return false
	}

	if err := m.chain.RewindTo(snap.BlockNumber); err != nil {
		return false
	}
	m.clock.Restore(snap.TimeOffset, snap.NextBlockTimestamp)

	// The reverted snapshot and everything taken after it are spent.
	for snapID := range m.snapshots {
		if snapID >= id {
			delete(m.snapshots, snapID)
		}
	}

	return true
}

// Get retrieves a snapshot by ID.
func (m *Manager) Get(id uint64) (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, exists := m.snapshots[id]
	return snap, exists
}

// List returns all snapshot IDs.
func (m *Manager) List() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint64, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live snapshots.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}

// Clear removes all snapshots.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = make(map[uint64]*Snapshot)
}
