// Package config holds runtime and CLI configuration, loadable from a
// YAML file and overridable by flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const SourceFileExt = ".rigz"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".rigz", ".rg"}

// Config controls a runtime instance. Zero value is unusable; start from
// Defaults.
type Config struct {
	// LogLevel is the minimum level the Log instruction emits:
	// off, error, warn, info, debug, trace.
	LogLevel string `yaml:"log_level"`

	// MaxDepth bounds the call stack.
	MaxDepth int `yaml:"max_depth"`

	// CachePath points the compiled-program cache at a SQLite file.
	// Empty keeps the cache in memory only.
	CachePath string `yaml:"cache_path"`

	// CacheSize bounds the in-memory compiled-program cache.
	CacheSize int `yaml:"cache_size"`

	// Threads is how many VM instances Test and Publish may run
	// concurrently.
	Threads int `yaml:"threads"`

	// Colors forces color output on or off; nil means auto-detect.
	Colors *bool `yaml:"colors"`
}

func Defaults() Config {
	return Config{
		LogLevel:  "error",
		MaxDepth:  1024,
		CacheSize: 128,
		Threads:   1,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	if c.MaxDepth <= 0 {
		return c, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.CacheSize <= 0 {
		c.CacheSize = Defaults().CacheSize
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	return c, nil
}
