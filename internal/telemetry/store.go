package telemetry

import (
	"context"
	"time"

	"github.com/andalabs/andadb/internal/errors"
	"github.com/andalabs/andadb/pkg/codec"
	"github.com/andalabs/andadb/pkg/osa"
)

// estimatesPath and latencyPath are where the estimator's snapshots
// live in the object store, alongside (but outside) any graph
// collection's own coll/<name>/ tree.
const (
	estimatesPath = "telemetry/estimates.cbor"
	latencyPath   = "telemetry/latency.cbor"
)

// estimateRecord is the CBOR-persisted form of one PatternKey's
// accumulated Estimate.
type estimateRecord struct {
	Key      string `cbor:"key"`
	Count    int64  `cbor:"count"`
	Min      int    `cbor:"min"`
	Max      int    `cbor:"max"`
	Sum      int64  `cbor:"sum"`
	LastSeen int64  `cbor:"last_seen"` // unix nanos
}

type estimatesDoc struct {
	Records []estimateRecord `cbor:"records"`
}

type latencyDoc struct {
	Counts map[string]int64 `cbor:"counts"`
}

// OSAEstimatorStore persists cardinality estimates through the generic
// object store (spec.md §6), the same contract every index and the
// collection manifest use, rather than a separate SQLite database.
type OSAEstimatorStore struct {
	store osa.Store
}

// NewOSAEstimatorStore wraps store for estimator persistence.
func NewOSAEstimatorStore(store osa.Store) *OSAEstimatorStore {
	return &OSAEstimatorStore{store: store}
}

// SaveEstimates replaces the persisted estimate set.
func (s *OSAEstimatorStore) SaveEstimates(estimates map[PatternKey]Estimate) error {
	doc := estimatesDoc{Records: make([]estimateRecord, 0, len(estimates))}
	for key, est := range estimates {
		doc.Records = append(doc.Records, estimateRecord{
			Key:      string(key),
			Count:    est.Count,
			Min:      est.Min,
			Max:      est.Max,
			Sum:      est.Sum,
			LastSeen: est.LastSeen.UnixNano(),
		})
	}

	framed, err := codec.EncodeFramed(doc)
	if err != nil {
		return err
	}
	return s.store.Put(context.Background(), estimatesPath, framed)
}

// LoadEstimates returns the last persisted estimate set, or an empty
// map if nothing has been persisted yet.
func (s *OSAEstimatorStore) LoadEstimates() (map[PatternKey]Estimate, error) {
	data, err := s.store.Get(context.Background(), estimatesPath)
	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			return map[PatternKey]Estimate{}, nil
		}
		return nil, err
	}

	var doc estimatesDoc
	if err := codec.DecodeFramed(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[PatternKey]Estimate, len(doc.Records))
	for _, r := range doc.Records {
		out[PatternKey(r.Key)] = Estimate{
			Key:      PatternKey(r.Key),
			Count:    r.Count,
			Min:      r.Min,
			Max:      r.Max,
			Sum:      r.Sum,
			LastSeen: time.Unix(0, r.LastSeen),
		}
	}
	return out, nil
}

// SaveLatencyCounts upserts a latency histogram snapshot.
func (s *OSAEstimatorStore) SaveLatencyCounts(counts map[LatencyBucket]int64) error {
	doc := latencyDoc{Counts: make(map[string]int64, len(counts))}
	for bucket, n := range counts {
		doc.Counts[string(bucket)] = n
	}

	framed, err := codec.EncodeFramed(doc)
	if err != nil {
		return err
	}
	return s.store.Put(context.Background(), latencyPath, framed)
}

// LoadLatencyCounts returns the last persisted latency histogram.
func (s *OSAEstimatorStore) LoadLatencyCounts() (map[LatencyBucket]int64, error) {
	data, err := s.store.Get(context.Background(), latencyPath)
	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			return map[LatencyBucket]int64{}, nil
		}
		return nil, err
	}

	var doc latencyDoc
	if err := codec.DecodeFramed(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[LatencyBucket]int64, len(doc.Counts))
	for k, v := range doc.Counts {
		out[LatencyBucket(k)] = v
	}
	return out, nil
}

// Close is a no-op: the underlying osa.Store is owned by the caller.
func (s *OSAEstimatorStore) Close() error {
	return nil
}
