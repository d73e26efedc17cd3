package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardinalityEstimator_RecordAndEstimate(t *testing.T) {
	e := NewEstimatorWithConfig(nil, EstimatorConfig{RecentCapacity: 8})

	_, ok := e.Estimate(ConceptTypeKey("Drug"))
	assert.False(t, ok)

	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 10, Timestamp: time.Now()})
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 30, Timestamp: time.Now()})
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 20, Timestamp: time.Now()})

	est, ok := e.Estimate(ConceptTypeKey("Drug"))
	require.True(t, ok)
	assert.Equal(t, int64(3), est.Count)
	assert.Equal(t, 10, est.Min)
	assert.Equal(t, 30, est.Max)
	assert.InDelta(t, 20.0, est.Mean(), 0.001)
}

func TestCardinalityEstimator_SnapshotSortedByKey(t *testing.T) {
	e := NewEstimator(nil)
	e.Record(Observation{Key: PredicateKey("treats"), Cardinality: 5})
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 3})

	snap := e.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, ConceptTypeKey("Drug"), snap[0].Key)
	assert.Equal(t, PredicateKey("treats"), snap[1].Key)
}

func TestCardinalityEstimator_LatencyDistribution(t *testing.T) {
	e := NewEstimator(nil)
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 1, Latency: 5 * time.Millisecond})
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 1, Latency: 200 * time.Millisecond})

	dist := e.LatencyDistribution()
	assert.Equal(t, int64(1), dist[BucketP10])
	assert.Equal(t, int64(1), dist[BucketP500])
}

func TestCardinalityEstimator_FlushAndReload(t *testing.T) {
	store := newMemStore()
	e := NewEstimatorWithConfig(store, EstimatorConfig{RecentCapacity: 8})
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 42, Timestamp: time.Now(), Latency: time.Millisecond})
	require.NoError(t, e.Flush())

	reloaded := NewEstimatorWithConfig(store, EstimatorConfig{RecentCapacity: 8})
	est, ok := reloaded.Estimate(ConceptTypeKey("Drug"))
	require.True(t, ok)
	assert.Equal(t, int64(1), est.Count)
	assert.Equal(t, 42, est.Min)

	dist := reloaded.LatencyDistribution()
	assert.Equal(t, int64(1), dist[BucketP10])
}

func TestCardinalityEstimator_CloseIsIdempotent(t *testing.T) {
	e := NewEstimator(nil)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	// Record after Close is a silent no-op, not a panic.
	e.Record(Observation{Key: ConceptTypeKey("Drug"), Cardinality: 1})
	_, ok := e.Estimate(ConceptTypeKey("Drug"))
	assert.False(t, ok)
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	b := NewCircularBuffer[int](3)
	b.Add(1)
	b.Add(2)
	b.Add(3)
	b.Add(4)
	assert.Equal(t, []int{2, 3, 4}, b.Items())
	assert.Equal(t, 3, b.Size())
}

// memStore is an in-memory EstimatorStore double, used where a test
// wants to exercise Flush/reload without an osa.Store.
type memStore struct {
	estimates map[PatternKey]Estimate
	latencies map[LatencyBucket]int64
}

func newMemStore() *memStore {
	return &memStore{
		estimates: map[PatternKey]Estimate{},
		latencies: map[LatencyBucket]int64{},
	}
}

func (m *memStore) SaveEstimates(estimates map[PatternKey]Estimate) error {
	m.estimates = make(map[PatternKey]Estimate, len(estimates))
	for k, v := range estimates {
		m.estimates[k] = v
	}
	return nil
}

func (m *memStore) LoadEstimates() (map[PatternKey]Estimate, error) {
	out := make(map[PatternKey]Estimate, len(m.estimates))
	for k, v := range m.estimates {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SaveLatencyCounts(counts map[LatencyBucket]int64) error {
	m.latencies = make(map[LatencyBucket]int64, len(counts))
	for k, v := range counts {
		m.latencies[k] = v
	}
	return nil
}

func (m *memStore) LoadLatencyCounts() (map[LatencyBucket]int64, error) {
	out := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }
