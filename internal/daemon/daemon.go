package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andalabs/andadb/internal/config"
)

// CollectionHandle is an open collection (pkg/collection.Collection) as
// seen by the daemon: enough surface to execute KIP statements, report
// compaction-eligibility stats, compact, and close.
type CollectionHandle interface {
	Execute(ctx context.Context, params ExecuteParams) (*ExecuteResult, error)
	Stats() CollectionStats
	Compact(ctx context.Context) error
	Close() error
}

// CollectionStats summarizes a collection's compaction eligibility.
type CollectionStats struct {
	OrphanRatio  float64
	OrphanCount  int
	TotalVectors int
}

// CollectionOpener opens a collection by name, rooted under the
// daemon's data directory.
type CollectionOpener func(dataDir, name string) (CollectionHandle, error)

type collectionEntry struct {
	name     string
	handle   CollectionHandle
	loadedAt time.Time
	lastUsed time.Time
}

func (e *collectionEntry) Close() error {
	if e.handle == nil {
		return nil
	}
	return e.handle.Close()
}

// Daemon keeps a bounded set of collections open in memory and serves
// KIP statements against them over a Unix socket, sharing index state
// across CLI invocations instead of reopening on every call.
type Daemon struct {
	config  Config
	dataDir string
	opener  CollectionOpener

	mu          sync.RWMutex
	collections map[string]*collectionEntry

	server    *Server
	pidFile   *PIDFile
	compactor *CompactionManager
	started   time.Time
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithCollectionOpener overrides how collections are opened, primarily
// for tests that want a fake in lieu of pkg/collection.
func WithCollectionOpener(opener CollectionOpener) Option {
	return func(d *Daemon) { d.opener = opener }
}

// WithDataDir overrides the directory collections are opened under.
func WithDataDir(dir string) Option {
	return func(d *Daemon) { d.dataDir = dir }
}

// NewDaemon creates a daemon from the given config.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{
		config:      cfg,
		collections: make(map[string]*collectionEntry),
		pidFile:     NewPIDFile(cfg.PIDPath),
	}
	for _, opt := range opts {
		opt(d)
	}

	server, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	d.server = server
	server.SetHandler(d)

	return d, nil
}

// Start runs the daemon until ctx is cancelled: writes the PID file,
// cleans up stale state from a previous crash, starts the background
// compactor, and blocks serving the socket.
func (d *Daemon) Start(ctx context.Context, compactionCfg config.CompactionConfig) error {
	if err := d.config.EnsureDir(); err != nil {
		return err
	}

	// A stale PID file from a crashed daemon shouldn't block startup;
	// a live one belonging to another process should.
	if d.pidFile.IsRunning() {
		pid, _ := d.pidFile.Read()
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	_ = d.pidFile.Remove()

	if err := d.pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	defer func() { _ = d.pidFile.Remove() }()

	d.started = time.Now()

	d.compactor = NewCompactionManager(d, compactionCfg)
	d.compactor.Start(ctx)
	defer d.compactor.Stop()

	defer d.cleanup()

	return d.server.ListenAndServe(ctx)
}

// HandleExecute implements RequestHandler: resolves the named
// collection (opening and evicting LRU as needed) and runs the
// statement against it.
func (d *Daemon) HandleExecute(ctx context.Context, params ExecuteParams) (*ExecuteResult, error) {
	entry, err := d.getOrOpen(params.Collection)
	if err != nil {
		return nil, err
	}

	if d.compactor != nil {
		d.compactor.InterruptCompaction(params.Collection)
	}

	result, err := entry.handle.Execute(ctx, params)

	d.mu.Lock()
	entry.lastUsed = time.Now()
	d.mu.Unlock()

	if d.compactor != nil {
		d.compactor.OnQueryComplete(params.Collection)
	}

	return result, err
}

// GetStatus implements RequestHandler.
func (d *Daemon) GetStatus() StatusResult {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return StatusResult{
		Running:           true,
		PID:               0, // filled in by Server.getStatus via os.Getpid
		Uptime:            time.Since(d.started).Round(time.Second).String(),
		DataDir:           d.dataDir,
		CollectionsLoaded: len(d.collections),
	}
}

func (d *Daemon) getOrOpen(name string) (*collectionEntry, error) {
	d.mu.RLock()
	entry, ok := d.collections[name]
	d.mu.RUnlock()
	if ok {
		return entry, nil
	}

	if d.opener == nil {
		return nil, fmt.Errorf("no collection opener configured")
	}

	handle, err := d.opener(d.dataDir, name)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}

	entry = &collectionEntry{
		name:     name,
		handle:   handle,
		loadedAt: time.Now(),
		lastUsed: time.Now(),
	}

	d.mu.Lock()
	d.collections[name] = entry
	if len(d.collections) > d.config.MaxCollections {
		d.evictLRU()
	}
	d.mu.Unlock()

	return entry, nil
}

// evictLRU closes and removes the least-recently-used collection.
// Caller must hold d.mu.
func (d *Daemon) evictLRU() {
	var oldestName string
	var oldestTime time.Time

	for name, entry := range d.collections {
		if oldestName == "" || entry.lastUsed.Before(oldestTime) {
			oldestName = name
			oldestTime = entry.lastUsed
		}
	}

	if oldestName == "" {
		return
	}

	if err := d.collections[oldestName].Close(); err != nil {
		slog.Warn("error closing evicted collection",
			slog.String("collection", oldestName), slog.String("error", err.Error()))
	}
	delete(d.collections, oldestName)
}

// cleanup closes all open collections. Called on shutdown.
func (d *Daemon) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, entry := range d.collections {
		if err := entry.Close(); err != nil {
			slog.Warn("error closing collection",
				slog.String("collection", name), slog.String("error", err.Error()))
		}
	}
	d.collections = make(map[string]*collectionEntry)
}
