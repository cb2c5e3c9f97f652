package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirstat/internal/domain"
	"dirstat/internal/exclude"
)

func TestLoadConfigFromMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirstat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "showHidden": true,
  "sortMode": "name",
  "progressInterval": "250ms",
  "excludePatterns": ["glob:**/node_modules", "glob:**/node_modules"]
}`), 0o644))

	config, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.True(t, config.ShowHidden)
	assert.Equal(t, domain.SortByName, config.SortMode)
	assert.Equal(t, 250*time.Millisecond, config.ProgressInterval)
	assert.Equal(t, []string{"glob:**/node_modules"}, config.ExcludePatterns)
	assert.Equal(t, "dark", config.Theme)
	assert.Equal(t, DefaultConfig().CacheFile, config.CacheFile)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sortMode: sideways\nlogLevel: debug\n"), 0o644))

	config, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, domain.SortBySize, config.SortMode)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, exclude.DefaultPatterns, config.ExcludePatterns)
}

func TestLoadConfigFromErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfigFrom(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
	_, err = LoadConfigFrom(dir)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	original := DefaultConfig()
	original.Path = "/srv"
	original.ShowHidden = true
	original.SortMode = domain.SortByMod
	original.ProgressInterval = 2 * time.Second
	original.ExcludePatterns = []string{`.*/\.git$`}

	require.NoError(t, SaveConfigTo(path, original))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	values := BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--sort", "name", "--exclude", "glob:**/tmp", "--progress-interval", "1s"}))

	base := DefaultConfig()
	base.ShowHidden = true
	applied := values.Apply(flags, base)
	assert.True(t, applied.ShowHidden)
	assert.Equal(t, domain.SortByName, applied.SortMode)
	assert.Equal(t, time.Second, applied.ProgressInterval)
	assert.Equal(t, append(append([]string(nil), exclude.DefaultPatterns...), "glob:**/tmp"), applied.ExcludePatterns)
	assert.Equal(t, exclude.DefaultPatterns, base.ExcludePatterns)

	rules, err := applied.Rules()
	require.NoError(t, err)
	assert.Equal(t, 2, rules.Len())
}

func TestFlagsLoadExplicitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme": "light"}`), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	values := BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--config", path, "--log-level", "warn"}))
	assert.Equal(t, path, values.ConfigFile())

	config, err := values.Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "light", config.Theme)
	assert.Equal(t, "warn", config.LogLevel)
}
