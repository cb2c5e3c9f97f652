package config

import (
	"time"

	"dirstat/internal/domain"
)

type Config struct {
	Path             string          `json:"path"`
	ShowHidden       bool            `json:"showHidden"`
	SortMode         domain.SortMode `json:"sortMode"`
	Theme            string          `json:"theme"`
	ExcludePatterns  []string        `json:"excludePatterns"`
	CacheFile        string          `json:"cacheFile"`
	ProgressInterval time.Duration   `json:"-"`
	LogFile          string          `json:"logFile"`
	LogLevel         string          `json:"logLevel"`
}

// fileConfig is what a config file may set. Nil fields keep the default.
type fileConfig struct {
	Path             *string        `mapstructure:"path"`
	ShowHidden       *bool          `mapstructure:"showHidden"`
	SortMode         *string        `mapstructure:"sortMode"`
	Theme            *string        `mapstructure:"theme"`
	ExcludePatterns  []string       `mapstructure:"excludePatterns"`
	CacheFile        *string        `mapstructure:"cacheFile"`
	ProgressInterval *time.Duration `mapstructure:"progressInterval"`
	LogFile          *string        `mapstructure:"logFile"`
	LogLevel         *string        `mapstructure:"logLevel"`
}
