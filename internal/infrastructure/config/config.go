// Package config layers gitty's settings: built-in defaults, a YAML
// file, environment variables, then command-line flags.
package config

import "github.com/rs/zerolog"

// Source names where a setting came from
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the resolved configuration for one invocation
type Config struct {
	// GitDir skips repository discovery when set
	GitDir string
	// LogLevel is a zerolog level name
	LogLevel string
	// LogFormat is "console" or "json"
	LogFormat string
	// CacheMB bounds the pack delta base cache
	CacheMB int
	NoColor bool

	// Path is the config file that was read, if any
	Path string
	// Sources records which layer set each field
	Sources map[string]Source
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		LogLevel:  zerolog.WarnLevel.String(),
		LogFormat: LogFormatConsole,
		CacheMB:   96,
		Sources: map[string]Source{
			"git_dir":    SourceDefault,
			"log_level":  SourceDefault,
			"log_format": SourceDefault,
			"cache_mb":   SourceDefault,
			"no_color":   SourceDefault,
		},
	}
}

// CacheBytes converts CacheMB to bytes
func (c Config) CacheBytes() int64 {
	return int64(c.CacheMB) << 20
}

func (c *Config) set(field string, src Source) {
	if c.Sources == nil {
		c.Sources = make(map[string]Source)
	}
	c.Sources[field] = src
}
