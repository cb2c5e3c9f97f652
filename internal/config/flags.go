package config

import (
	"time"

	"github.com/spf13/pflag"
)

// FlagValues holds the command line overrides. Only flags that were set on
// the command line replace configured values.
type FlagValues struct {
	configFile       string
	showHidden       bool
	sortMode         string
	exclude          []string
	cacheFile        string
	progressInterval time.Duration
	logFile          string
	logLevel         string
}

func BindFlags(flags *pflag.FlagSet) *FlagValues {
	values := &FlagValues{}
	flags.StringVar(&values.configFile, "config", "", "Read configuration from this file")
	flags.BoolVar(&values.showHidden, "show-hidden", false, "Show hidden files")
	flags.StringVar(&values.sortMode, "sort", "", "Sort by size, name or mod")
	flags.StringArrayVar(&values.exclude, "exclude", nil, "Additional exclude pattern (regexp, or glob:PATTERN); repeatable")
	flags.StringVar(&values.cacheFile, "cache-file", "", "Cache file name")
	flags.DurationVar(&values.progressInterval, "progress-interval", 0, "Minimum time between progress updates")
	flags.StringVar(&values.logFile, "log-file", "", "Write logs to this file")
	flags.StringVar(&values.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return values
}

// ConfigFile is the explicit --config path, empty when not given.
func (values *FlagValues) ConfigFile() string {
	return values.configFile
}

// Load reads the configuration named by --config, or the user's config file,
// and applies the flag overrides.
func (values *FlagValues) Load(flags *pflag.FlagSet) (Config, error) {
	var base Config
	var err error
	if values.configFile != "" {
		base, err = LoadConfigFrom(values.configFile)
	} else {
		base, err = LoadConfig()
	}
	return values.Apply(flags, base), err
}

func (values *FlagValues) Apply(flags *pflag.FlagSet, base Config) Config {
	if flags.Changed("show-hidden") {
		base.ShowHidden = values.showHidden
	}
	if flags.Changed("sort") {
		base.SortMode = domainSortMode(values.sortMode, base.SortMode)
	}
	if flags.Changed("exclude") {
		base.ExcludePatterns = dedupe(append(append([]string(nil), base.ExcludePatterns...), values.exclude...))
	}
	if flags.Changed("cache-file") {
		base.CacheFile = values.cacheFile
	}
	if flags.Changed("progress-interval") && values.progressInterval >= 0 {
		base.ProgressInterval = values.progressInterval
	}
	if flags.Changed("log-file") {
		base.LogFile = values.logFile
	}
	if flags.Changed("log-level") {
		base.LogLevel = values.logLevel
	}
	return base
}
