package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := runCLI(t, "demo", "--show", "path,reach")
	require.NoError(t, err)
	assert.Contains(t, out, "### path")
	assert.Contains(t, out, "_12 rows_")
	assert.Contains(t, out, "### reach")
	assert.Contains(t, out, "_4 rows_")
	assert.NotContains(t, out, "### edge")
	assert.Contains(t, out, "over 5 nodes")
}

func TestRunFileWithConfig(t *testing.T) {
	dir := t.TempDir()
	topo := filepath.Join(dir, "demo.edn")
	require.NoError(t, os.WriteFile(topo, []byte(demoTopology), 0o644))
	cfg := filepath.Join(dir, "flow.yaml")
	journal := filepath.Join(dir, "journal")
	require.NoError(t, os.WriteFile(cfg, []byte("workers: 4\nshow: [edge]\njournal: "+journal+"\n"), 0o644))

	out, err := runCLI(t, "run", topo, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "### edge")
	assert.Contains(t, out, "_4 rows_")
	assert.NotContains(t, out, "### path")

	out, err = runCLI(t, "journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "run 1 #0 edge +1/-0")
	assert.Contains(t, out, `+ ["a" "b"]`)
}

func TestConfigFlagsOverrideFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: 4\nmax_rounds: 9\nverbose: true\n"), 0o644))

	root := newRootCommand(&bytes.Buffer{})
	demo, _, err := root.Find([]string{"demo"})
	require.NoError(t, err)
	require.NoError(t, demo.ParseFlags([]string{"--config", cfgPath, "--workers", "2"}))

	cfg, err := configFor(demo)
	require.NoError(t, err)
	assert.Equal(t, Config{Workers: 2, MaxRounds: 9, Verbose: true}, cfg)
}

func TestConfigErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("wokers: 2\n"), 0o644))
	_, err := loadConfig(bad)
	assert.Error(t, err, "unknown keys are rejected")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = runCLI(t, "run", filepath.Join(t.TempDir(), "missing.edn"))
	assert.Error(t, err)
	_, err = runCLI(t, "journal", filepath.Join(t.TempDir(), "nothing"))
	assert.Error(t, err)
}

func TestPrimitives(t *testing.T) {
	out, err := runCLI(t, "primitives")
	require.NoError(t, err)
	assert.Contains(t, out, "count\n")
	assert.Contains(t, out, "range\n")
}
