package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 100000), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), make([]byte, 500), 0o644))

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{"logLevel": "error"}`), 0o644))
	return dir, configFile
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScanPrintsSummary(t *testing.T) {
	dir, configFile := fixture(t)
	output, err := run(t, "scan", dir, "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, output, dir)
	assert.Contains(t, output, "Items:     3")
	assert.Contains(t, output, "Dirs:      1")
	assert.Contains(t, output, "Excluded:  0")
	assert.Contains(t, output, "100 kB  a.txt")
	assert.Contains(t, output, "finished")
}

func TestScanHonoursExcludeFlag(t *testing.T) {
	dir, configFile := fixture(t)
	output, err := run(t, "scan", dir, "--config", configFile, "--exclude", `.*/sub$`)
	require.NoError(t, err)
	assert.Contains(t, output, "Items:     1")
	assert.Contains(t, output, "Excluded:  1")
	assert.Contains(t, output, "sub (excluded)")
}

func TestScanWritesCacheForInspect(t *testing.T) {
	dir, configFile := fixture(t)
	cacheFile := filepath.Join(t.TempDir(), "tree.cache.gz")
	output, err := run(t, "scan", dir, "--config", configFile, "--write-cache", cacheFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote cache file "+cacheFile)

	output, err = run(t, "inspect", cacheFile, "--config", configFile, "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, output, dir)
	assert.Contains(t, output, "Items:     3")
	assert.Contains(t, output, "100 kB  a.txt")
	assert.NotContains(t, output, "sub/")
}

func TestScanRejectsInvalidPath(t *testing.T) {
	_, configFile := fixture(t)
	_, err := run(t, "scan", filepath.Join(t.TempDir(), "missing"), "--config", configFile)
	assert.Error(t, err)
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, configFile := fixture(t)
	garbage := filepath.Join(t.TempDir(), "garbage.cache")
	require.NoError(t, os.WriteFile(garbage, []byte("hello\n"), 0o644))
	_, err := run(t, "inspect", garbage, "--config", configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid cache file")
}

func TestInspectYAMLOutput(t *testing.T) {
	dir, configFile := fixture(t)
	cacheFile := filepath.Join(t.TempDir(), "tree.cache")
	_, err := run(t, "scan", dir, "--config", configFile, "--write-cache", cacheFile, "--color", "never")
	require.NoError(t, err)

	output, err := run(t, "inspect", cacheFile, "--config", configFile, "-o", "yaml")
	require.NoError(t, err)
	var document summaryDocument
	require.NoError(t, yaml.Unmarshal([]byte(output), &document))
	assert.Equal(t, dir, document.Path)
	assert.Equal(t, int64(3), document.Items)
	assert.Equal(t, int64(1), document.Dirs)
	require.NotEmpty(t, document.Largest)
	assert.Equal(t, "a.txt", document.Largest[0].Name)
	assert.Equal(t, "file", document.Largest[0].Kind)
	assert.Empty(t, document.State)

	_, err = run(t, "inspect", cacheFile, "--config", configFile, "-o", "xml")
	assert.Error(t, err)
}

func TestColorFlagRejectsUnknownMode(t *testing.T) {
	dir, configFile := fixture(t)
	_, err := run(t, "scan", dir, "--config", configFile, "--color", "sometimes")
	assert.Error(t, err)
}
