// Package session tracks per-reader MVCC snapshot leases.
//
// A KIP read pins the collection's current version pointer at query start
// (spec.md §5: "readers observe a consistent snapshot captured at query
// start"); the lease keeps that version alive until the reader's context
// ends, so compaction never reclaims a generation a live reader still
// needs.
package session

import (
	"time"

	"github.com/andalabs/andadb/pkg/version"
)

// Lease represents one reader's pin on a collection's version pointer.
type Lease struct {
	// ID is the lease identifier, assigned by the manager.
	ID string `json:"id"`

	// Collection is the name of the collection the lease pins.
	Collection string `json:"collection"`

	// Version is the index version pointer pinned by this lease.
	Version uint64 `json:"version"`

	// CreatedAt is when the lease was acquired.
	CreatedAt time.Time `json:"created_at"`

	// LastUsed is when the lease was last touched (e.g. a query progressed).
	LastUsed time.Time `json:"last_used"`

	// EngineVersion is the andadb build that acquired this lease.
	EngineVersion string `json:"engine_version"`
}

// LeaseInfo provides summary information about a lease for listing
// (e.g. `andadb stats`).
type LeaseInfo struct {
	// ID is the lease identifier.
	ID string

	// Collection is the collection the lease pins.
	Collection string

	// Version is the pinned version pointer.
	Version uint64

	// Age is how long the lease has been held.
	Age time.Duration
}

// newLease creates a new lease pinning the given collection version.
func newLease(id, collection string, pinned uint64) *Lease {
	now := time.Now()
	return &Lease{
		ID:            id,
		Collection:    collection,
		Version:       pinned,
		CreatedAt:     now,
		LastUsed:      now,
		EngineVersion: version.Version,
	}
}

// touch updates the LastUsed timestamp to now.
func (l *Lease) touch() {
	l.LastUsed = time.Now()
}

// isStale returns true if the lease hasn't been touched within maxAge.
// A stale lease indicates a reader that crashed or leaked its release —
// the manager force-releases it so compaction isn't blocked forever.
func (l *Lease) isStale(maxAge time.Duration) bool {
	return time.Since(l.LastUsed) > maxAge
}

// toInfo converts a Lease to LeaseInfo for listing.
func (l *Lease) toInfo() *LeaseInfo {
	return &LeaseInfo{
		ID:         l.ID,
		Collection: l.Collection,
		Version:    l.Version,
		Age:        time.Since(l.CreatedAt),
	}
}
