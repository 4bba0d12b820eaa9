package config

import (
	"errors"
	"path/filepath"
	"sort"

	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Region   string         `toml:"region"`
	Toolsets []string       `toml:"toolsets"`
	LogLevel string         `toml:"log_level"`
	Cache    CacheConfig    `toml:"cache"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Limits   LimitsConfig   `toml:"limits"`
	Accounts AccountsConfig `toml:"accounts"`
}

type CacheConfig struct {
	ListTTLSeconds int `toml:"list_ttl_seconds"`
}

type TimeoutConfig struct {
	DefaultSeconds int            `toml:"default_seconds"`
	MaxSeconds     int            `toml:"max_seconds"`
	PerTool        map[string]int `toml:"per_tool"`
}

type LimitsConfig struct {
	MaxServices int `toml:"max_services"`
	MaxTraces   int `toml:"max_traces"`
}

type AccountsConfig struct {
	IncludeLinked *bool `toml:"include_linked"`
}

type Overrides struct {
	Region   *string
	Toolsets *[]string
	LogLevel *string
}

func DefaultConfig() Config {
	return Config{
		Toolsets: []string{"appsignals"},
		LogLevel: "info",
		Limits: LimitsConfig{
			MaxServices: 100,
			MaxTraces:   100,
		},
	}
}

// IncludeLinkedAccounts is the cross-account default applied when a tool
// call does not pass includeLinkedAccounts.
func (c Config) IncludeLinkedAccounts() bool {
	if c.Accounts.IncludeLinked == nil {
		return true
	}
	return *c.Accounts.IncludeLinked
}

func Load(path string, dir string, overrides Overrides) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			return cfg, err
		}
		merge(&cfg, fileCfg)
	}

	if dir != "" {
		files, err := dropInFiles(dir)
		if err != nil {
			return cfg, err
		}
		for _, file := range files {
			fileCfg, err := readFile(file)
			if err != nil {
				return cfg, err
			}
			merge(&cfg, fileCfg)
		}
	}

	applyOverrides(&cfg, overrides)
	applyEnv(&cfg)
	return cfg, nil
}

func readFile(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func dropInFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func merge(dst *Config, src Config) {
	if src.Region != "" {
		dst.Region = src.Region
	}
	if len(src.Toolsets) > 0 {
		dst.Toolsets = append([]string{}, src.Toolsets...)
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Cache.ListTTLSeconds > 0 {
		dst.Cache.ListTTLSeconds = src.Cache.ListTTLSeconds
	}
	if src.Timeouts.DefaultSeconds > 0 {
		dst.Timeouts.DefaultSeconds = src.Timeouts.DefaultSeconds
	}
	if src.Timeouts.MaxSeconds > 0 {
		dst.Timeouts.MaxSeconds = src.Timeouts.MaxSeconds
	}
	if len(src.Timeouts.PerTool) > 0 {
		dst.Timeouts.PerTool = map[string]int{}
		for name, seconds := range src.Timeouts.PerTool {
			dst.Timeouts.PerTool[name] = seconds
		}
	}
	if src.Limits.MaxServices > 0 {
		dst.Limits.MaxServices = src.Limits.MaxServices
	}
	if src.Limits.MaxTraces > 0 {
		dst.Limits.MaxTraces = src.Limits.MaxTraces
	}
	if src.Accounts.IncludeLinked != nil {
		dst.Accounts.IncludeLinked = src.Accounts.IncludeLinked
	}
}

func applyOverrides(cfg *Config, overrides Overrides) {
	if overrides.Region != nil {
		cfg.Region = *overrides.Region
	}
	if overrides.Toolsets != nil {
		cfg.Toolsets = append([]string{}, (*overrides.Toolsets)...)
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
}

func applyEnv(cfg *Config) {
	if level := os.Getenv("APPSIGNALS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}
