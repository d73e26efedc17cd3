package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andalabs/andadb/pkg/nexus"
	"github.com/andalabs/andadb/pkg/osa"
)

func openTestExecutor(t *testing.T) Executor {
	t.Helper()
	store, err := osa.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	n, err := nexus.Open(context.Background(), nexus.Config{Store: store})
	require.NoError(t, err)
	return nexus.NewHandler(n, t.TempDir())
}

func TestScenarios_AllPass(t *testing.T) {
	ResetScenarios()
	scenarios := Scenarios()
	require.NotEmpty(t, scenarios, "testdata/scenarios.yaml should declare at least one scenario")

	ctx := context.Background()
	validator := NewValidator(openTestExecutor(t))

	for _, spec := range scenarios {
		spec := spec
		t.Run(spec.ID, func(t *testing.T) {
			tr := validator.RunScenario(ctx, spec)
			require.True(t, tr.Passed, "%s: %s", spec.ID, tr.Mismatch)
		})
	}
}

func TestRunAll_ReportsFullPassCount(t *testing.T) {
	ResetScenarios()
	validator := NewValidator(openTestExecutor(t))

	result := validator.RunAll(context.Background())
	require.Equal(t, result.Total, result.Pass, "every declared scenario should pass")
	require.Equal(t, len(Scenarios()), result.Total)
}

func TestLoadScenarios_Malformed(t *testing.T) {
	ResetScenarios()
	cfg, err := LoadScenarios()
	require.NoError(t, err)
	for _, s := range cfg.Scenarios {
		require.NotEmpty(t, s.Statement, "%s: scenario must declare a KIP statement", s.ID)
	}
}
