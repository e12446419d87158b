package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKinds = `
kinds:
  - key: slopes
    name: Slopes
families:
  - prefix: slice
    name: "{base} first row"
    variant: slice
    params:
      stop: 1
    for: [slopes]
`

const testConfig = `
log_level: error
kinds: kinds.yaml
store:
  driver: file
  path: datasets
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "telemetry %v", args)
	return out.String()
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "telemetry.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kinds.yaml"), []byte(testKinds), 0644))

	dsDir := filepath.Join(dir, "datasets", "2016-03-16T120000")
	require.NoError(t, os.MkdirAll(dsDir, 0755))
	slopes, err := json.Marshal(domain.Array{Shape: []int{2, 4}, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dsDir, "slopes.json"), slopes, 0644))

	t.Run("kinds", func(t *testing.T) {
		out := run(t, "kinds", "-c", cfg)
		assert.Contains(t, out, "slice/slopes")
		assert.Contains(t, out, "slopes first row")
	})

	t.Run("graph", func(t *testing.T) {
		out := run(t, "graph", "slice/slopes", "-c", cfg)
		assert.Contains(t, out, " 1. slopes")
		assert.Contains(t, out, " 2. slice/slopes")
	})

	t.Run("make", func(t *testing.T) {
		out := run(t, "make", "slice/slopes", "-c", cfg, "--date", "2016-03-16", "--json")
		var summary dto.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		assert.Equal(t, 1, summary.Datasets)
		assert.Equal(t, 1, summary.Succeeded)
		assert.FileExists(t, filepath.Join(dsDir, "slice", "slopes.json"))
	})

	t.Run("datasets list", func(t *testing.T) {
		out := run(t, "datasets", "list", "-c", cfg, "--date", "2016-03-16", "--json")
		var list []domain.Dataset
		require.NoError(t, json.Unmarshal([]byte(out), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "2016-03-16T120000", list[0].ID)
		assert.Equal(t, 4, list[0].Samples)
	})

	t.Run("datasets remove", func(t *testing.T) {
		out := run(t, "datasets", "remove", "-c", cfg, "--date", "2016-03-16")
		assert.Equal(t, "removed 2016-03-16T120000\n", out)
		assert.DirExists(t, dsDir, "storage is kept")
	})

	t.Run("version", func(t *testing.T) {
		assert.Equal(t, "telemetry version dev\n", run(t, "version"))
	})
}

func TestCLI_UnknownKindFails(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "telemetry.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kinds.yaml"), []byte(testKinds), 0644))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"make", "nope", "-c", cfg})
	err := rootCmd.ExecuteContext(context.Background())
	assert.True(t, domain.IsStructural(err))
}
