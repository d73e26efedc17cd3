package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLease_SetsFields(t *testing.T) {
	// Given: a lease id, collection, and pinned version
	// When: creating a new lease
	lease := newLease("lease-1", "clinical-notes", 42)

	// Then: fields are set as expected
	assert.Equal(t, "lease-1", lease.ID)
	assert.Equal(t, "clinical-notes", lease.Collection)
	assert.Equal(t, uint64(42), lease.Version)
	assert.False(t, lease.CreatedAt.IsZero())
	assert.Equal(t, lease.CreatedAt, lease.LastUsed)
	assert.NotEmpty(t, lease.EngineVersion)
}

func TestLease_Touch_UpdatesLastUsed(t *testing.T) {
	// Given: a freshly created lease
	lease := newLease("lease-1", "clinical-notes", 1)
	before := lease.LastUsed

	// When: touching after a short delay
	time.Sleep(time.Millisecond)
	lease.touch()

	// Then: LastUsed advances but CreatedAt does not
	assert.True(t, lease.LastUsed.After(before))
}

func TestLease_IsStale(t *testing.T) {
	// Given: a lease touched in the past
	lease := newLease("lease-1", "clinical-notes", 1)
	lease.LastUsed = time.Now().Add(-time.Hour)

	// Then: it is stale against a short max age, fresh against a long one
	assert.True(t, lease.isStale(time.Minute))
	assert.False(t, lease.isStale(2*time.Hour))
}

func TestLease_ToInfo(t *testing.T) {
	// Given: a lease
	lease := newLease("lease-1", "clinical-notes", 7)

	// When: converting to info
	info := lease.toInfo()

	// Then: summary fields carry over
	assert.Equal(t, "lease-1", info.ID)
	assert.Equal(t, "clinical-notes", info.Collection)
	assert.Equal(t, uint64(7), info.Version)
	assert.GreaterOrEqual(t, info.Age, time.Duration(0))
}
