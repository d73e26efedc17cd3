package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxLeases is the default maximum number of concurrently pinned leases.
const DefaultMaxLeases = 4096

// ManagerConfig configures the lease manager.
type ManagerConfig struct {
	// MaxLeases is the maximum number of concurrently pinned leases.
	// Defaults to DefaultMaxLeases.
	MaxLeases int
}

// Manager tracks the leases pinned by in-flight readers, in memory only —
// a lease never outlives the process that acquired it.
type Manager struct {
	mu        sync.RWMutex
	leases    map[string]*Lease
	maxLeases int
	nextID    uint64
}

// NewManager creates a new lease manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	maxLeases := cfg.MaxLeases
	if maxLeases <= 0 {
		maxLeases = DefaultMaxLeases
	}

	return &Manager{
		leases:    make(map[string]*Lease),
		maxLeases: maxLeases,
	}, nil
}

// Pin acquires a lease on the given collection's version pointer.
// The caller must Release the lease once its query snapshot is no longer needed.
func (m *Manager) Pin(collection string, version uint64) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.leases) >= m.maxLeases {
		return nil, fmt.Errorf("maximum %d pinned leases reached; readers are not releasing snapshots", m.maxLeases)
	}

	id := m.newLeaseID()
	lease := newLease(id, collection, version)
	m.leases[id] = lease

	return lease, nil
}

// Touch refreshes a lease's LastUsed timestamp, keeping it from being
// reaped by Prune while a long-running query is still active.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[id]
	if !ok {
		return fmt.Errorf("lease '%s' not found", id)
	}
	lease.touch()
	return nil
}

// Release releases a pinned lease. Releasing an unknown lease is a no-op —
// callers may race a context-cancellation release against a normal one.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.leases, id)
}

// Get retrieves a lease by id.
func (m *Manager) Get(id string) (*Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lease, ok := m.leases[id]
	if !ok {
		return nil, fmt.Errorf("lease '%s' not found", id)
	}
	return lease, nil
}

// List returns info for every currently pinned lease.
func (m *Manager) List() []*LeaseInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*LeaseInfo, 0, len(m.leases))
	for _, lease := range m.leases {
		infos = append(infos, lease.toInfo())
	}
	return infos
}

// OldestPinned returns the lowest version pointer pinned by any live lease
// on the given collection. Compaction must not reclaim a version >= the
// result of this call. The second return is false when no reader holds a
// lease on the collection, meaning nothing constrains reclamation.
func (m *Manager) OldestPinned(collection string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest uint64
	found := false
	for _, lease := range m.leases {
		if lease.Collection != collection {
			continue
		}
		if !found || lease.Version < oldest {
			oldest = lease.Version
			found = true
		}
	}
	return oldest, found
}

// Prune force-releases leases that haven't been touched within maxAge,
// reclaiming leaks left by readers whose context was never cancelled
// cleanly. Returns the count of leases released.
func (m *Manager) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for id, lease := range m.leases {
		if lease.isStale(maxAge) {
			delete(m.leases, id)
			released++
		}
	}
	return released
}

// Count returns the number of currently pinned leases.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leases)
}

// newLeaseID must be called with m.mu held.
func (m *Manager) newLeaseID() string {
	n := atomic.AddUint64(&m.nextID, 1)
	return fmt.Sprintf("lease-%d", n)
}
