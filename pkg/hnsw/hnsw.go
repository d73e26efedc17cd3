// Package hnsw implements the Hierarchical Navigable Small World
// approximate-nearest-neighbor index from scratch (spec.md §4.1): a
// multi-layer proximity graph with heuristic neighbor pruning, per-node
// locking, and deterministic binary snapshots. Grounded on the teacher's
// internal/store/hnsw.go wrapper conventions (lazy tombstone deletion,
// dimension/duplicate/not-found error taxonomy, Stats() for orphan
// accounting) and the layered beam-search structure of
// other_examples/haivivi-giztoy's hand-rolled HNSW, extended with the
// heuristic selection rule spec.md §4.1 requires.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/andalabs/andadb/internal/errors"
)

// Config configures a new Index.
type Config struct {
	Dim            int
	Metric         Metric
	M              int // graph degree target for layers > 0; default 16
	EfConstruction int // candidate pool size during insert; default 200
	Seed           int64
}

const (
	DefaultM              = 16
	DefaultEfConstruction = 200
)

// Result is one ranked hit from Search.
type Result struct {
	DocID    uint64
	Distance float32
}

// Index is a thread-safe HNSW graph. Insert and search may proceed
// concurrently: inserts take per-node write locks (in ascending doc_id
// order) plus the index's entry-point lock; searches take only read
// locks.
type Index struct {
	metric         Metric
	dist           func(a, b []float32) float32
	dim            int
	m              int
	mMax0          int
	efConstruction int
	levelMult      float64

	entryMu    sync.RWMutex
	entryPoint uint64
	topLayer   int
	hasEntry   bool

	nodesMu sync.RWMutex
	nodes   map[uint64]*node

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an empty Index with the given configuration.
func New(cfg Config) *Index {
	m := cfg.M
	if m <= 0 {
		m = DefaultM
	}
	ef := cfg.EfConstruction
	if ef <= 0 {
		ef = DefaultEfConstruction
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	metric := cfg.Metric
	if metric == "" {
		metric = MetricL2
	}
	return &Index{
		metric:         metric,
		dist:           distanceFunc(metric),
		dim:            cfg.Dim,
		m:              m,
		mMax0:          m * 2,
		efConstruction: ef,
		levelMult:      1 / math.Log(float64(m)),
		nodes:          make(map[uint64]*node),
		rng:            rand.New(rand.NewSource(seed)),
		topLayer:       -1,
	}
}

// Dim returns the configured vector dimension.
func (idx *Index) Dim() int { return idx.dim }

// Metric returns the configured distance metric.
func (idx *Index) Metric() Metric { return idx.metric }

// Len returns the number of live (non-tombstoned) nodes.
func (idx *Index) Len() int {
	idx.nodesMu.RLock()
	defer idx.nodesMu.RUnlock()
	n := 0
	for _, nd := range idx.nodes {
		if !nd.tombstone {
			n++
		}
	}
	return n
}

func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	defer idx.rngMu.Unlock()
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.levelMult))
}

// Insert adds vec under doc_id (spec.md §4.1 insert algorithm).
func (idx *Index) Insert(docID uint64, vec []float32) error {
	if len(vec) != idx.dim {
		return errors.DimensionMismatchf("expected dim %d, got %d", idx.dim, len(vec))
	}

	idx.nodesMu.RLock()
	existing, exists := idx.nodes[docID]
	idx.nodesMu.RUnlock()
	if exists && !existing.tombstone {
		return errors.Duplicatef("doc_id %d is already live", docID)
	}

	vecCopy := make([]float32, len(vec))
	copy(vecCopy, vec)
	if idx.metric == MetricCosine {
		normalizeInPlace(vecCopy)
	}

	level := idx.randomLevel()
	n := newNode(docID, vecCopy, level)

	idx.entryMu.Lock()
	if !idx.hasEntry {
		idx.hasEntry = true
		idx.entryPoint = docID
		idx.topLayer = level
		idx.entryMu.Unlock()

		idx.nodesMu.Lock()
		idx.nodes[docID] = n
		idx.nodesMu.Unlock()
		return nil
	}
	currObj := idx.entryPoint
	topLayer := idx.topLayer
	idx.entryMu.Unlock()

	curDist := idx.dist(vecCopy, idx.nodeVector(currObj))

	// Greedily descend layers above the new node's level.
	for lc := topLayer; lc > level; lc-- {
		changed := true
		for changed {
			changed = false
			for _, neighborID := range idx.nodeNeighborsAt(currObj, lc) {
				d := idx.dist(vecCopy, idx.nodeVector(neighborID))
				if d < curDist {
					curDist = d
					currObj = neighborID
					changed = true
				}
			}
		}
	}

	// Connect at every layer from min(topLayer, level) down to 0.
	for lc := min(topLayer, level); lc >= 0; lc-- {
		candidates := idx.searchLayer(vecCopy, currObj, idx.efConstruction, lc)
		capAt := idx.m
		if lc == 0 {
			capAt = idx.mMax0
		}
		selected := idx.selectNeighborsHeuristic(vecCopy, candidates, capAt)
		idx.connect(n, lc, selected, capAt)
		if len(selected) > 0 {
			currObj = selected[0]
		}
	}

	idx.nodesMu.Lock()
	idx.nodes[docID] = n
	idx.nodesMu.Unlock()

	idx.entryMu.Lock()
	if level > idx.topLayer {
		idx.topLayer = level
		idx.entryPoint = docID
	}
	idx.entryMu.Unlock()

	return nil
}

// connect installs n's selected neighbors at layer lc and adds the
// reverse edges, shrinking any neighbor that exceeds its cap. Locks are
// acquired across the full touched node set in ascending doc_id order.
func (idx *Index) connect(n *node, lc int, selected []uint64, capAt int) {
	touched := append([]uint64{n.docID}, selected...)
	sort.Slice(touched, func(i, j int) bool { return touched[i] < touched[j] })

	locked := make(map[uint64]*node, len(touched))
	for _, id := range touched {
		if id == n.docID {
			locked[id] = n
			continue
		}
		if nd := idx.getNode(id); nd != nil {
			locked[id] = nd
		}
	}
	for _, id := range touched {
		if nd, ok := locked[id]; ok {
			nd.mu.Lock()
			defer nd.mu.Unlock()
		}
	}

	n.neighbors[lc] = append([]uint64(nil), selected...)

	for _, neighborID := range selected {
		nb, ok := locked[neighborID]
		if !ok || nb.layer() < lc {
			continue
		}
		nb.neighbors[lc] = append(nb.neighbors[lc], n.docID)
		if len(nb.neighbors[lc]) > capAt {
			cands := make([]candidate, 0, len(nb.neighbors[lc]))
			for _, id := range nb.neighbors[lc] {
				cands = append(cands, candidate{id: id, dist: idx.dist(nb.vector, idx.nodeVectorLocked(id, locked))})
			}
			shrunk := idx.selectNeighborsHeuristicVec(nb.vector, cands, capAt)
			nb.neighbors[lc] = shrunk
		}
	}
}

func (idx *Index) nodeVectorLocked(id uint64, locked map[uint64]*node) []float32 {
	if nd, ok := locked[id]; ok {
		return nd.vector
	}
	return idx.nodeVector(id)
}

// selectNeighborsHeuristic ranks candidates by distance to query and
// greedily keeps a candidate only if no already-selected neighbor is
// closer to it than the query is (spec.md §4.1 heuristic pruning rule).
func (idx *Index) selectNeighborsHeuristic(query []float32, candidates []candidate, m int) []uint64 {
	return idx.selectNeighborsHeuristicVec(query, candidates, m)
}

func (idx *Index) selectNeighborsHeuristicVec(query []float32, candidates []candidate, m int) []uint64 {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	selected := make([]uint64, 0, m)
	selectedVecs := make([][]float32, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		cVec := idx.nodeVector(c.id)
		if cVec == nil {
			continue
		}
		keep := true
		for _, sVec := range selectedVecs {
			if idx.dist(sVec, cVec) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.id)
			selectedVecs = append(selectedVecs, cVec)
		}
	}
	return selected
}

// searchLayer runs the beam search of width ef at layer lc from entryID,
// returning up to ef nearest candidates (spec.md §4.1 search algorithm).
func (idx *Index) searchLayer(query []float32, entryID uint64, ef int, lc int) []candidate {
	visited := map[uint64]bool{entryID: true}

	entryDist := idx.dist(query, idx.nodeVector(entryID))
	candidates := &minHeap{{id: entryID, dist: entryDist}}
	results := &maxHeap{{id: entryID, dist: entryDist}}
	heap.Init(candidates)
	heap.Init(results)

	for candidates.Len() > 0 {
		c := (*candidates)[0]
		worst := (*results)[0]
		if c.dist > worst.dist && results.Len() >= ef {
			break
		}
		heap.Pop(candidates)

		for _, neighborID := range idx.nodeNeighborsAt(c.id, lc) {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			nd := idx.getNode(neighborID)
			if nd == nil {
				continue
			}
			d := idx.dist(query, nd.vector)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, candidate{id: neighborID, dist: d})
				heap.Push(results, candidate{id: neighborID, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

// Search returns the top-k nearest live neighbors of query. ef must be
// >= k (spec.md §4.1).
func (idx *Index) Search(query []float32, k int, ef int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, errors.DimensionMismatchf("expected dim %d, got %d", idx.dim, len(query))
	}
	if ef < k {
		ef = k
	}

	idx.entryMu.RLock()
	hasEntry := idx.hasEntry
	currObj := idx.entryPoint
	topLayer := idx.topLayer
	idx.entryMu.RUnlock()
	if !hasEntry {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if idx.metric == MetricCosine {
		normalizeInPlace(q)
	}

	curDist := idx.dist(q, idx.nodeVector(currObj))
	for lc := topLayer; lc > 0; lc-- {
		changed := true
		for changed {
			changed = false
			for _, neighborID := range idx.nodeNeighborsAt(currObj, lc) {
				d := idx.dist(q, idx.nodeVector(neighborID))
				if d < curDist {
					curDist = d
					currObj = neighborID
					changed = true
				}
			}
		}
	}

	candidates := idx.searchLayer(q, currObj, max(ef, k), 0)

	out := make([]Result, 0, k)
	for _, c := range candidates {
		nd := idx.getNode(c.id)
		if nd == nil || nd.tombstone {
			continue
		}
		out = append(out, Result{DocID: c.id, Distance: c.dist})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Remove logically deletes doc_id (spec.md §4.1 delete). Edges are not
// physically removed until compaction; if the entry point is deleted
// the highest-layer non-tombstoned node is promoted.
func (idx *Index) Remove(docID uint64) error {
	nd := idx.getNode(docID)
	if nd == nil || nd.tombstone {
		return errors.NotFoundf("doc_id %d not found", docID)
	}
	nd.mu.Lock()
	nd.tombstone = true
	nd.mu.Unlock()

	idx.entryMu.Lock()
	defer idx.entryMu.Unlock()
	if idx.hasEntry && idx.entryPoint == docID {
		idx.promoteEntryPointLocked()
	}
	return nil
}

// promoteEntryPointLocked must be called with entryMu held.
func (idx *Index) promoteEntryPointLocked() {
	idx.nodesMu.RLock()
	defer idx.nodesMu.RUnlock()

	bestLayer := -1
	var bestID uint64
	found := false
	for id, nd := range idx.nodes {
		if nd.tombstone {
			continue
		}
		if nd.layer() > bestLayer {
			bestLayer = nd.layer()
			bestID = id
			found = true
		}
	}
	if !found {
		idx.hasEntry = false
		idx.topLayer = -1
		return
	}
	idx.entryPoint = bestID
	idx.topLayer = bestLayer
}

func (idx *Index) getNode(id uint64) *node {
	idx.nodesMu.RLock()
	defer idx.nodesMu.RUnlock()
	return idx.nodes[id]
}

func (idx *Index) nodeVector(id uint64) []float32 {
	nd := idx.getNode(id)
	if nd == nil {
		return nil
	}
	return nd.vector
}

func (idx *Index) nodeNeighborsAt(id uint64, lc int) []uint64 {
	nd := idx.getNode(id)
	if nd == nil || lc > nd.layer() {
		return nil
	}
	nd.mu.RLock()
	defer nd.mu.RUnlock()
	out := make([]uint64, len(nd.neighbors[lc]))
	copy(out, nd.neighbors[lc])
	return out
}

// Stats summarizes tombstone/orphan accounting for compaction eligibility,
// mirroring the teacher's HNSWStats shape (ValidIDs/orphan counts).
type Stats struct {
	LiveNodes      int
	TombstoneNodes int
}

func (idx *Index) Stats() Stats {
	idx.nodesMu.RLock()
	defer idx.nodesMu.RUnlock()
	var s Stats
	for _, nd := range idx.nodes {
		if nd.tombstone {
			s.TombstoneNodes++
		} else {
			s.LiveNodes++
		}
	}
	return s
}

// OrphanRatio is the fraction of nodes that are tombstoned.
func (s Stats) OrphanRatio() float64 {
	total := s.LiveNodes + s.TombstoneNodes
	if total == 0 {
		return 0
	}
	return float64(s.TombstoneNodes) / float64(total)
}

// Compact physically drops tombstoned nodes by rebuilding the graph
// from scratch over the surviving vectors, re-inserted in ascending
// doc_id order. Tombstones are lazy at Remove time (spec.md §4.1), so
// this is the only path that reclaims their memory and the stale
// neighbor-list entries that linger in live nodes' adjacency lists.
func (idx *Index) Compact() error {
	idx.nodesMu.RLock()
	type live struct {
		id  uint64
		vec []float32
	}
	survivors := make([]live, 0, len(idx.nodes))
	for id, nd := range idx.nodes {
		if !nd.tombstone {
			survivors = append(survivors, live{id: id, vec: nd.vector})
		}
	}
	idx.nodesMu.RUnlock()

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].id < survivors[j].id })

	fresh := New(Config{
		Dim:            idx.dim,
		Metric:         idx.metric,
		M:              idx.m,
		EfConstruction: idx.efConstruction,
	})
	for _, s := range survivors {
		if err := fresh.Insert(s.id, s.vec); err != nil {
			return err
		}
	}

	idx.entryMu.Lock()
	idx.nodesMu.Lock()
	idx.nodes = fresh.nodes
	idx.entryPoint = fresh.entryPoint
	idx.topLayer = fresh.topLayer
	idx.hasEntry = fresh.hasEntry
	idx.nodesMu.Unlock()
	idx.entryMu.Unlock()
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
