// Package validation provides a data-driven harness for running KIP
// statements against an executor and asserting their outcome, in
// particular the structured dry-run error shape spec.md §9/scenario S5
// promises: {ok:false, errors:[{kind, path}]}. Unlike ad hoc assertions
// scattered through pkg/nexus's tests, scenarios here are declared in
// testdata/scenarios.yaml so new dry-run edge cases can be added
// without touching Go code.
package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andalabs/andadb/internal/daemon"
)

// ScenarioSpec declares one KIP statement and the outcome it must
// produce.
type ScenarioSpec struct {
	ID        string         `yaml:"id"`   // e.g., "S5-delete-unknown-type"
	Name      string         `yaml:"name"` // Human-readable name
	Statement string         `yaml:"statement"`
	Params    map[string]any `yaml:"params"`
	DryRun    bool           `yaml:"dry_run"`

	ExpectOK         bool     `yaml:"expect_ok"`
	ExpectErrorKinds []string `yaml:"expect_error_kinds"` // any of, matched against result.Errors[*].Kind
	ExpectErrorPaths []string `yaml:"expect_error_paths"` // any of, matched against result.Errors[*].Path

	Notes string `yaml:"notes"`
}

// ScenarioConfig holds every declared scenario loaded from YAML.
type ScenarioConfig struct {
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

var (
	scenariosOnce sync.Once
	scenariosData *ScenarioConfig
	scenariosErr  error
)

// LoadScenarios loads scenarios from testdata/scenarios.yaml, cached
// after the first call.
func LoadScenarios() (*ScenarioConfig, error) {
	scenariosOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			scenariosErr = fmt.Errorf("failed to get current file path")
			return
		}

		dir := filepath.Dir(filename)
		path := filepath.Join(dir, "testdata", "scenarios.yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			scenariosErr = fmt.Errorf("failed to read scenarios file %s: %w", path, err)
			return
		}

		var cfg ScenarioConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			scenariosErr = fmt.Errorf("failed to parse scenarios YAML: %w", err)
			return
		}
		scenariosData = &cfg
	})

	return scenariosData, scenariosErr
}

// ResetScenarios clears the cached scenarios (for testing).
func ResetScenarios() {
	scenariosOnce = sync.Once{}
	scenariosData = nil
	scenariosErr = nil
}

// Scenarios returns every declared scenario, or nil if the testdata
// file failed to load.
func Scenarios() []ScenarioSpec {
	cfg, err := LoadScenarios()
	if err != nil {
		return nil
	}
	return cfg.Scenarios
}

// Executor is the surface a Validator drives statements through —
// satisfied by pkg/nexus.Handler, so scenarios run against an
// in-process graph. internal/daemon.Client names the same call Execute
// and does not implement this interface.
type Executor interface {
	HandleExecute(ctx context.Context, params daemon.ExecuteParams) (*daemon.ExecuteResult, error)
}

// TestResult captures one scenario's outcome.
type TestResult struct {
	Spec     ScenarioSpec
	Passed   bool
	Result   *daemon.ExecuteResult
	Duration time.Duration
	Mismatch string // why Passed is false, empty when Passed
}

// ValidationResult aggregates a full scenario run.
type ValidationResult struct {
	Timestamp time.Time
	Results   []TestResult
	Pass      int
	Total     int
}

// Validator runs ScenarioSpecs against an Executor.
type Validator struct {
	exec Executor
}

// NewValidator wraps exec for scenario runs.
func NewValidator(exec Executor) *Validator {
	return &Validator{exec: exec}
}

// RunScenario executes one scenario and checks its outcome against the
// spec's expectations. It never fails on an Executor error: a
// statement that fails to parse or execute is itself an outcome the
// scenario can assert against (ExpectOK: false).
func (v *Validator) RunScenario(ctx context.Context, spec ScenarioSpec) TestResult {
	start := time.Now()
	result := TestResult{Spec: spec}

	res, err := v.exec.HandleExecute(ctx, daemon.ExecuteParams{
		Collection: "graph",
		Statement:  spec.Statement,
		Params:     spec.Params,
		DryRun:     spec.DryRun,
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Mismatch = fmt.Sprintf("executor error: %v", err)
		return result
	}
	result.Result = res

	if res.OK != spec.ExpectOK {
		result.Mismatch = fmt.Sprintf("expected ok=%v, got ok=%v", spec.ExpectOK, res.OK)
		return result
	}

	if mismatch := checkErrors(res, spec); mismatch != "" {
		result.Mismatch = mismatch
		return result
	}

	result.Passed = true
	return result
}

// checkErrors confirms every expected kind/path appears somewhere in
// res.Errors. A scenario with no expectations passes vacuously.
func checkErrors(res *daemon.ExecuteResult, spec ScenarioSpec) string {
	for _, wantKind := range spec.ExpectErrorKinds {
		found := false
		for _, iss := range res.Errors {
			if iss.Kind == wantKind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("expected an error of kind %q, got %+v", wantKind, res.Errors)
		}
	}
	for _, wantPath := range spec.ExpectErrorPaths {
		found := false
		for _, iss := range res.Errors {
			if iss.Path == wantPath {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("expected an error at path %q, got %+v", wantPath, res.Errors)
		}
	}
	return ""
}

// RunAll executes every declared scenario in order.
func (v *Validator) RunAll(ctx context.Context) *ValidationResult {
	result := &ValidationResult{Timestamp: time.Now()}
	for _, spec := range Scenarios() {
		tr := v.RunScenario(ctx, spec)
		result.Results = append(result.Results, tr)
		result.Total++
		if tr.Passed {
			result.Pass++
		}
	}
	return result
}
