package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.HNSW.M != 16 || cfg.HNSW.EfConstruction != 200 || cfg.HNSW.EfSearch != 64 {
		t.Fatalf("unexpected HNSW defaults: %+v", cfg.HNSW)
	}
	if cfg.TFS.K1 != 1.2 || cfg.TFS.B != 0.75 {
		t.Fatalf("unexpected TFS defaults: %+v", cfg.TFS)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadFromProjectFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
hnsw:
  ef_search: 128
tfs:
  tokenizer: cjk
query:
  rrf_constant: 30
`
	if err := os.WriteFile(filepath.Join(dir, ".andadb.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HNSW.EfSearch != 128 {
		t.Fatalf("expected ef_search override, got %d", cfg.HNSW.EfSearch)
	}
	if cfg.TFS.Tokenizer != "cjk" {
		t.Fatalf("expected tokenizer override, got %s", cfg.TFS.Tokenizer)
	}
	if cfg.Query.RRFConstant != 30 {
		t.Fatalf("expected rrf_constant override, got %d", cfg.Query.RRFConstant)
	}
	// Values not present in the project file keep their defaults.
	if cfg.HNSW.M != 16 {
		t.Fatalf("expected default M to survive merge, got %d", cfg.HNSW.M)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANDADB_HNSW_EF_SEARCH", "256")
	t.Setenv("ANDADB_RRF_CONSTANT", "99")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HNSW.EfSearch != 256 {
		t.Fatalf("expected env override to win, got %d", cfg.HNSW.EfSearch)
	}
	if cfg.Query.RRFConstant != 99 {
		t.Fatalf("expected env override to win, got %d", cfg.Query.RRFConstant)
	}
}

func TestValidateRejectsBadMetric(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.Metric = "manhattan"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown metric")
	}
}

func TestValidateRejectsEfConstructionBelowM(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.EfConstruction = 4
	cfg.HNSW.M = 16
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for ef_construction < m")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.EfSearch = 111
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded := NewConfig()
	if err := loaded.loadYAML(path); err != nil {
		t.Fatalf("loadYAML: %v", err)
	}
	if loaded.HNSW.EfSearch != 111 {
		t.Fatalf("expected round-tripped ef_search, got %d", loaded.HNSW.EfSearch)
	}
}

func TestMergeNewDefaultsFillsZeroFields(t *testing.T) {
	cfg := &Config{}
	added := cfg.MergeNewDefaults()
	if len(added) == 0 {
		t.Fatalf("expected MergeNewDefaults to report added fields")
	}
	if cfg.Query.RRFConstant == 0 {
		t.Fatalf("expected rrf_constant to be filled in")
	}
}
