package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"dirstat/internal/domain"
	"dirstat/internal/exclude"
	"dirstat/internal/fsutil"
	"dirstat/internal/services"
)

const (
	configDirName  = "dirstat"
	configFileName = "config.json"
)

func DefaultConfig() Config {
	return Config{
		Path:             ".",
		ShowHidden:       false,
		SortMode:         domain.SortBySize,
		Theme:            "dark",
		ExcludePatterns:  append([]string(nil), exclude.DefaultPatterns...),
		CacheFile:        services.DefaultCacheName,
		ProgressInterval: services.DefaultProgressInterval,
		LogLevel:         "info",
	}
}

func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

// LoadConfig reads the user's config file. A missing file yields the
// defaults.
func LoadConfig() (Config, error) {
	config := DefaultConfig()
	path, err := ConfigPath()
	if err != nil {
		return config, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return config, nil
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads an explicitly named file in any format viper knows,
// picked by its extension.
func LoadConfigFrom(path string) (Config, error) {
	config := DefaultConfig()
	info, err := os.Stat(path)
	if err != nil {
		return config, fmt.Errorf("stat configuration %s: %w", path, err)
	}
	if info.IsDir() {
		return config, fmt.Errorf("configuration path %s is a directory", path)
	}
	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return config, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var stored fileConfig
	if decodeErr := reader.Unmarshal(&stored); decodeErr != nil {
		return config, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return mergeConfig(config, stored), nil
}

type savedConfig struct {
	Config
	ProgressInterval string `json:"progressInterval"`
}

func SaveConfig(config Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(path, config)
}

func SaveConfigTo(path string, config Config) error {
	data, err := json.MarshalIndent(savedConfig{Config: config, ProgressInterval: config.ProgressInterval.String()}, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.LockAndWrite(path, 0o600, func(w io.Writer) error {
		_, writeErr := w.Write(append(data, '\n'))
		return writeErr
	})
}

func mergeConfig(base Config, stored fileConfig) Config {
	merged := base
	if stored.Path != nil {
		merged.Path = *stored.Path
	}
	if stored.ShowHidden != nil {
		merged.ShowHidden = *stored.ShowHidden
	}
	if stored.SortMode != nil {
		merged.SortMode = domainSortMode(*stored.SortMode, base.SortMode)
	}
	if stored.Theme != nil {
		merged.Theme = *stored.Theme
	}
	if stored.ExcludePatterns != nil {
		merged.ExcludePatterns = dedupe(stored.ExcludePatterns)
	}
	if stored.CacheFile != nil {
		merged.CacheFile = *stored.CacheFile
	}
	if stored.ProgressInterval != nil && *stored.ProgressInterval >= 0 {
		merged.ProgressInterval = *stored.ProgressInterval
	}
	if stored.LogFile != nil {
		merged.LogFile = *stored.LogFile
	}
	if stored.LogLevel != nil {
		merged.LogLevel = *stored.LogLevel
	}
	return merged
}

func domainSortMode(value string, fallback domain.SortMode) domain.SortMode {
	switch domain.SortMode(value) {
	case domain.SortByName, domain.SortByMod, domain.SortBySize:
		return domain.SortMode(value)
	default:
		return fallback
	}
}

func dedupe(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		result = append(result, pattern)
	}
	return result
}

// Rules compiles the configured exclude patterns.
func (config Config) Rules() (*exclude.Rules, error) {
	return exclude.NewRules(config.ExcludePatterns...)
}
