package config

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/domain"
)

// Overrides are the command-line flags that take part in configuration
type Overrides struct {
	// ConfigPath is --config; a named file must exist
	ConfigPath string
	GitDir     string
	Debug      bool
	NoColor    bool
}

// Loader resolves a Config from every layer
type Loader struct {
	lookup  LookupEnv
	homeDir func() (string, error)
}

// NewLoader creates a loader reading the process environment
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv, homeDir: os.UserHomeDir}
}

// NewLoaderWithEnv creates a loader over a custom environment
func NewLoaderWithEnv(lookup LookupEnv) *Loader {
	return &Loader{
		lookup:  lookup,
		homeDir: func() (string, error) { return "", os.ErrNotExist },
	}
}

// Load applies defaults, the config file, the environment and flags in
// that order and validates the result
func (l *Loader) Load(flags Overrides) (Config, error) {
	cfg := Default()

	path, explicit := l.configPath(flags.ConfigPath)
	if path != "" {
		err := LoadFile(path, &cfg)
		if err != nil && (explicit || !domain.IsKind(err, domain.KindNotFound)) {
			return Config{}, err
		}
	}

	if err := NewEnvLoader(l.lookup).Apply(&cfg); err != nil {
		return Config{}, err
	}

	if flags.GitDir != "" {
		cfg.GitDir = flags.GitDir
		cfg.set("git_dir", SourceFlag)
	}
	if flags.Debug {
		cfg.LogLevel = zerolog.DebugLevel.String()
		cfg.set("log_level", SourceFlag)
	}
	if flags.NoColor {
		cfg.NoColor = true
		cfg.set("no_color", SourceFlag)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configPath picks --config, then $GITTY_CONFIG, then the XDG location.
// The bool reports whether the user named the file explicitly.
func (l *Loader) configPath(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if v, ok := l.lookup("GITTY_CONFIG"); ok && v != "" {
		return v, true
	}
	if v, ok := l.lookup("XDG_CONFIG_HOME"); ok && v != "" {
		return filepath.Join(v, "gitty", "config.yaml"), false
	}
	home, err := l.homeDir()
	if err != nil || home == "" {
		return "", false
	}
	return filepath.Join(home, ".config", "gitty", "config.yaml"), false
}
