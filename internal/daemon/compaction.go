package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andalabs/andadb/internal/config"
)

// CompactionManager manages automatic background compaction for all open
// collections: HNSW tombstone sweep and TFS segment merge, run through
// the collection's own Compact method.
//
// Compaction runs automatically when:
// 1. The collection becomes idle (no queries for IdleTimeout duration)
// 2. Orphan ratio exceeds threshold (orphans/total > OrphanThreshold)
// 3. Minimum orphan count is met (avoids small-index churn)
// 4. Cooldown period has elapsed since last compaction
//
// Compaction is interruptible: any query cancels ongoing compaction for
// its collection.
type CompactionManager struct {
	config config.CompactionConfig
	daemon *Daemon

	mu    sync.Mutex
	state map[string]*compactionState

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// compactionState tracks compaction eligibility per collection.
type compactionState struct {
	name        string
	lastQuery   time.Time
	lastCompact time.Time

	idleTimer *time.Timer

	compacting bool
	cancelFunc context.CancelFunc
}

// NewCompactionManager creates a new compaction manager.
func NewCompactionManager(daemon *Daemon, cfg config.CompactionConfig) *CompactionManager {
	return &CompactionManager{
		config: cfg,
		daemon: daemon,
		state:  make(map[string]*compactionState),
	}
}

// Start initializes the compaction manager.
func (m *CompactionManager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	slog.Debug("compaction manager started",
		slog.Bool("enabled", m.config.Enabled),
		slog.Float64("orphan_threshold", m.config.OrphanThreshold),
		slog.Int("min_orphan_count", m.config.MinOrphanCount))
}

// Stop gracefully shuts down the compaction manager, waiting for any
// in-progress compaction to complete or cancel.
func (m *CompactionManager) Stop() {
	m.stopOnce.Do(func() {
		slog.Debug("compaction manager stopping")

		if m.cancel != nil {
			m.cancel()
		}

		m.mu.Lock()
		for _, st := range m.state {
			if st.idleTimer != nil {
				st.idleTimer.Stop()
			}
			if st.cancelFunc != nil {
				st.cancelFunc()
			}
		}
		m.mu.Unlock()

		m.wg.Wait()
		slog.Debug("compaction manager stopped")
	})
}

// OnQueryComplete is called after each query to reset the idle timer for
// its collection, enabling idle-triggered compaction.
func (m *CompactionManager) OnQueryComplete(name string) {
	if !m.config.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[name]
	if !ok {
		st = &compactionState{name: name}
		m.state[name] = st
	}
	st.lastQuery = time.Now()

	if st.idleTimer != nil {
		st.idleTimer.Stop()
	}

	idleTimeout, err := time.ParseDuration(m.config.IdleTimeout)
	if err != nil {
		idleTimeout = 30 * time.Second
	}

	st.idleTimer = time.AfterFunc(idleTimeout, func() {
		m.onIdle(name)
	})
}

// InterruptCompaction stops ongoing compaction for a collection. Called
// when a query arrives while compaction is running.
func (m *CompactionManager) InterruptCompaction(name string) {
	if !m.config.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[name]
	if !ok || !st.compacting {
		return
	}

	if st.cancelFunc != nil {
		slog.Debug("interrupting compaction for query", slog.String("collection", name))
		st.cancelFunc()
	}
}

func (m *CompactionManager) onIdle(name string) {
	if !m.shouldCompact(name) {
		return
	}
	m.startCompaction(name)
}

func (m *CompactionManager) shouldCompact(name string) bool {
	if !m.config.Enabled {
		return false
	}

	select {
	case <-m.ctx.Done():
		return false
	default:
	}

	m.mu.Lock()
	st, ok := m.state[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if st.compacting {
		m.mu.Unlock()
		return false
	}

	cooldown, err := time.ParseDuration(m.config.Cooldown)
	if err != nil {
		cooldown = time.Hour
	}
	if time.Since(st.lastCompact) < cooldown {
		m.mu.Unlock()
		slog.Debug("compaction skipped: cooldown active",
			slog.String("collection", name),
			slog.Duration("remaining", cooldown-time.Since(st.lastCompact)))
		return false
	}
	m.mu.Unlock()

	m.daemon.mu.RLock()
	entry, ok := m.daemon.collections[name]
	m.daemon.mu.RUnlock()
	if !ok || entry == nil || entry.handle == nil {
		return false
	}

	stats := entry.handle.Stats()
	if stats.OrphanCount < m.config.MinOrphanCount {
		slog.Debug("compaction skipped: below minimum orphan count",
			slog.String("collection", name),
			slog.Int("orphans", stats.OrphanCount),
			slog.Int("min_required", m.config.MinOrphanCount))
		return false
	}
	if stats.OrphanRatio < m.config.OrphanThreshold {
		slog.Debug("compaction skipped: below threshold",
			slog.String("collection", name),
			slog.Float64("ratio", stats.OrphanRatio),
			slog.Float64("threshold", m.config.OrphanThreshold))
		return false
	}

	slog.Info("compaction eligible",
		slog.String("collection", name),
		slog.Int("orphans", stats.OrphanCount),
		slog.Int("total", stats.TotalVectors),
		slog.Float64("ratio", stats.OrphanRatio))

	return true
}

func (m *CompactionManager) startCompaction(name string) {
	m.mu.Lock()
	st := m.state[name]
	if st == nil || st.compacting {
		m.mu.Unlock()
		return
	}
	st.compacting = true
	ctx, cancel := context.WithCancel(m.ctx)
	st.cancelFunc = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			st.compacting = false
			st.cancelFunc = nil
			m.mu.Unlock()
		}()
		m.runCompaction(ctx, name)
	}()
}

func (m *CompactionManager) runCompaction(ctx context.Context, name string) {
	start := time.Now()
	slog.Info("background compaction starting", slog.String("collection", name))

	m.daemon.mu.RLock()
	entry, ok := m.daemon.collections[name]
	m.daemon.mu.RUnlock()
	if !ok || entry == nil || entry.handle == nil {
		slog.Warn("compaction failed: collection not found", slog.String("collection", name))
		return
	}

	before := entry.handle.Stats()

	if err := entry.handle.Compact(ctx); err != nil {
		if ctx.Err() != nil {
			slog.Debug("compaction interrupted", slog.String("collection", name))
			return
		}
		slog.Warn("compaction failed", slog.String("collection", name), slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	if st, ok := m.state[name]; ok {
		st.lastCompact = time.Now()
	}
	m.mu.Unlock()

	after := entry.handle.Stats()
	slog.Info("background compaction complete",
		slog.String("collection", name),
		slog.Int("orphans_removed", before.OrphanCount-after.OrphanCount),
		slog.Int("vectors", after.TotalVectors),
		slog.Duration("duration", time.Since(start)))
}
