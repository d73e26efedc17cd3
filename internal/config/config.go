package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete andadb engine configuration: index
// parameters, the collection manager's compaction policy, the daemon's
// wire-surface settings, and session/lease bookkeeping.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	HNSW       HNSWConfig       `yaml:"hnsw" json:"hnsw"`
	TFS        TFSConfig        `yaml:"tfs" json:"tfs"`
	BTree      BTreeConfig      `yaml:"btree" json:"btree"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Sessions   SessionsConfig   `yaml:"sessions" json:"sessions"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
}

// PathsConfig configures where collection data and daemon state live.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	PIDFile string `yaml:"pid_file" json:"pid_file"`
}

// HNSWConfig configures new HNSW indexes. Defaults match spec.md §4.1.
type HNSWConfig struct {
	M              int     `yaml:"m" json:"m"`
	EfConstruction int     `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int     `yaml:"ef_search" json:"ef_search"`
	Metric         string  `yaml:"metric" json:"metric"` // "l2", "cosine", "dot"
	LevelMul       float64 `yaml:"-" json:"-"`           // derived: 1/ln(M)

	// EmbeddingDim is the concepts collection's "embedding" field
	// dimension, fixed at genesis (spec.md §4.6) and recorded here so
	// later opens of the same graph reconstruct an identical schema.
	// 0 means the graph was initialized without vector search.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`
}

// TFSConfig configures new BM25 text indexes. Defaults match spec.md §4.2.
type TFSConfig struct {
	K1                  float64 `yaml:"k1" json:"k1"`
	B                   float64 `yaml:"b" json:"b"`
	Tokenizer           string  `yaml:"tokenizer" json:"tokenizer"` // "code" or "cjk"
	CompactionRatio     float64 `yaml:"compaction_ratio" json:"compaction_ratio"`
	MaxSegments         int     `yaml:"max_segments" json:"max_segments"`
}

// BTreeConfig configures the attribute index.
type BTreeConfig struct {
	PageSize  int `yaml:"page_size" json:"page_size"`
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// QueryConfig configures the KIP planner and rank fusion.
type QueryConfig struct {
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// ServerConfig configures the KIP daemon.
type ServerConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// SessionsConfig configures reader snapshot leases for MVCC.
type SessionsConfig struct {
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	MaxSessions int     `yaml:"max_sessions" json:"max_sessions"`
}

// CompactionConfig configures the background compactor shared by the
// HNSW tombstone sweep and the TFS segment merge.
type CompactionConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	OrphanThreshold float64 `yaml:"orphan_threshold" json:"orphan_threshold"`
	MinOrphanCount  int     `yaml:"min_orphan_count" json:"min_orphan_count"`
	IdleTimeout     string  `yaml:"idle_timeout" json:"idle_timeout"`
	Cooldown        string  `yaml:"cooldown" json:"cooldown"`
}

// NewConfig returns a Config populated with the defaults from spec.md.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
			PIDFile: filepath.Join(defaultDataDir(), "andadb.pid"),
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
			Metric:         "l2",
			LevelMul:       1 / math.Log(16),
		},
		TFS: TFSConfig{
			K1:              1.2,
			B:               0.75,
			Tokenizer:       "code",
			CompactionRatio: 0.25,
			MaxSegments:     16,
		},
		BTree: BTreeConfig{
			PageSize:  4096,
			CacheSize: 1000,
		},
		Query: QueryConfig{
			RRFConstant:  60,
			DefaultLimit: 20,
		},
		Server: ServerConfig{
			SocketPath: filepath.Join(defaultDataDir(), "andadb.sock"),
			LogLevel:   "info",
		},
		Sessions: SessionsConfig{
			StoragePath: filepath.Join(defaultDataDir(), "sessions"),
			MaxSessions: 64,
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "andadb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "andadb")
	}
	return filepath.Join(home, ".local", "share", "andadb")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "andadb", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "andadb", "config.yaml")
	}
	return filepath.Join(home, ".config", "andadb", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, returning a nil
// config and nil error if no such file exists.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for a data directory, applying, in order of
// increasing precedence: hardcoded defaults, the user/global config
// (~/.config/andadb/config.yaml), a project config (.andadb.yaml in
// dir), then ANDADB_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".andadb.yaml", ".andadb.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.PIDFile != "" {
		c.Paths.PIDFile = other.Paths.PIDFile
	}

	if other.HNSW.M != 0 {
		c.HNSW.M = other.HNSW.M
	}
	if other.HNSW.EfConstruction != 0 {
		c.HNSW.EfConstruction = other.HNSW.EfConstruction
	}
	if other.HNSW.EfSearch != 0 {
		c.HNSW.EfSearch = other.HNSW.EfSearch
	}
	if other.HNSW.Metric != "" {
		c.HNSW.Metric = other.HNSW.Metric
	}
	if other.HNSW.EmbeddingDim != 0 {
		c.HNSW.EmbeddingDim = other.HNSW.EmbeddingDim
	}
	c.HNSW.LevelMul = 1 / math.Log(float64(c.HNSW.M))

	if other.TFS.K1 != 0 {
		c.TFS.K1 = other.TFS.K1
	}
	if other.TFS.B != 0 {
		c.TFS.B = other.TFS.B
	}
	if other.TFS.Tokenizer != "" {
		c.TFS.Tokenizer = other.TFS.Tokenizer
	}
	if other.TFS.CompactionRatio != 0 {
		c.TFS.CompactionRatio = other.TFS.CompactionRatio
	}
	if other.TFS.MaxSegments != 0 {
		c.TFS.MaxSegments = other.TFS.MaxSegments
	}

	if other.BTree.PageSize != 0 {
		c.BTree.PageSize = other.BTree.PageSize
	}
	if other.BTree.CacheSize != 0 {
		c.BTree.CacheSize = other.BTree.CacheSize
	}

	if other.Query.RRFConstant != 0 {
		c.Query.RRFConstant = other.Query.RRFConstant
	}
	if other.Query.DefaultLimit != 0 {
		c.Query.DefaultLimit = other.Query.DefaultLimit
	}

	if other.Server.SocketPath != "" {
		c.Server.SocketPath = other.Server.SocketPath
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Sessions.StoragePath != "" {
		c.Sessions.StoragePath = other.Sessions.StoragePath
	}
	if other.Sessions.MaxSessions > 0 {
		c.Sessions.MaxSessions = other.Sessions.MaxSessions
	}

	if other.Compaction.OrphanThreshold != 0 || other.Compaction.MinOrphanCount != 0 ||
		other.Compaction.IdleTimeout != "" || other.Compaction.Cooldown != "" {
		c.Compaction.Enabled = other.Compaction.Enabled
	}
	if other.Compaction.OrphanThreshold != 0 {
		c.Compaction.OrphanThreshold = other.Compaction.OrphanThreshold
	}
	if other.Compaction.MinOrphanCount != 0 {
		c.Compaction.MinOrphanCount = other.Compaction.MinOrphanCount
	}
	if other.Compaction.IdleTimeout != "" {
		c.Compaction.IdleTimeout = other.Compaction.IdleTimeout
	}
	if other.Compaction.Cooldown != "" {
		c.Compaction.Cooldown = other.Compaction.Cooldown
	}
}

// applyEnvOverrides applies ANDADB_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANDADB_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("ANDADB_HNSW_EF_SEARCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HNSW.EfSearch = n
		}
	}
	if v := os.Getenv("ANDADB_HNSW_METRIC"); v != "" {
		c.HNSW.Metric = v
	}
	if v := os.Getenv("ANDADB_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Query.RRFConstant = k
		}
	}
	if v := os.Getenv("ANDADB_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("ANDADB_SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("ANDADB_COMPACTION_ENABLED"); v != "" {
		c.Compaction.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("ANDADB_COMPACTION_ORPHAN_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Compaction.OrphanThreshold = t
		}
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration, returning an error if invalid.
func (c *Config) Validate() error {
	if c.HNSW.M < 2 {
		return fmt.Errorf("hnsw.m must be >= 2, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction < c.HNSW.M {
		return fmt.Errorf("hnsw.ef_construction must be >= m, got %d < %d", c.HNSW.EfConstruction, c.HNSW.M)
	}
	validMetrics := map[string]bool{"l2": true, "cosine": true, "dot": true}
	if !validMetrics[strings.ToLower(c.HNSW.Metric)] {
		return fmt.Errorf("hnsw.metric must be 'l2', 'cosine', or 'dot', got %s", c.HNSW.Metric)
	}

	if c.TFS.K1 < 0 {
		return fmt.Errorf("tfs.k1 must be non-negative, got %f", c.TFS.K1)
	}
	if c.TFS.B < 0 || c.TFS.B > 1 {
		return fmt.Errorf("tfs.b must be between 0 and 1, got %f", c.TFS.B)
	}
	validTokenizers := map[string]bool{"code": true, "cjk": true}
	if !validTokenizers[strings.ToLower(c.TFS.Tokenizer)] {
		return fmt.Errorf("tfs.tokenizer must be 'code' or 'cjk', got %s", c.TFS.Tokenizer)
	}
	if c.TFS.CompactionRatio < 0 || c.TFS.CompactionRatio > 1 {
		return fmt.Errorf("tfs.compaction_ratio must be between 0 and 1, got %f", c.TFS.CompactionRatio)
	}

	if c.BTree.PageSize < 512 {
		return fmt.Errorf("btree.page_size must be >= 512, got %d", c.BTree.PageSize)
	}

	if c.Query.RRFConstant <= 0 {
		return fmt.Errorf("query.rrf_constant must be positive, got %d", c.Query.RRFConstant)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Compaction.OrphanThreshold < 0 || c.Compaction.OrphanThreshold > 1 {
		return fmt.Errorf("compaction.orphan_threshold must be between 0 and 1, got %f", c.Compaction.OrphanThreshold)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults fills in zero-valued fields with current defaults,
// returning the list of fields that were added. Used when loading a
// config file written by an older version of the engine.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Query.RRFConstant == 0 {
		c.Query.RRFConstant = defaults.Query.RRFConstant
		added = append(added, "query.rrf_constant")
	}
	if c.Query.DefaultLimit == 0 {
		c.Query.DefaultLimit = defaults.Query.DefaultLimit
		added = append(added, "query.default_limit")
	}
	if c.TFS.CompactionRatio == 0 {
		c.TFS.CompactionRatio = defaults.TFS.CompactionRatio
		added = append(added, "tfs.compaction_ratio")
	}
	if c.Sessions.StoragePath == "" {
		c.Sessions.StoragePath = defaults.Sessions.StoragePath
		added = append(added, "sessions.storage_path")
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = defaults.Sessions.MaxSessions
		added = append(added, "sessions.max_sessions")
	}

	return added
}
