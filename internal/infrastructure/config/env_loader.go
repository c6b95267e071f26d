package config

import (
	"fmt"
	"strconv"

	"gitty.dev/cli/internal/core/domain"
)

// LookupEnv matches os.LookupEnv
type LookupEnv func(key string) (string, bool)

// EnvLoader reads GIT_DIR, GITTY_LOG_LEVEL, GITTY_LOG_FORMAT,
// GITTY_CACHE_MB and NO_COLOR
type EnvLoader struct {
	lookup LookupEnv
}

// NewEnvLoader creates an env loader over lookup
func NewEnvLoader(lookup LookupEnv) *EnvLoader {
	return &EnvLoader{lookup: lookup}
}

// Apply overlays set, non-empty variables onto cfg
func (l *EnvLoader) Apply(cfg *Config) error {
	if v, ok := l.get("GIT_DIR"); ok {
		cfg.GitDir = v
		cfg.set("git_dir", SourceEnv)
	}
	if v, ok := l.get("GITTY_LOG_LEVEL"); ok {
		cfg.LogLevel = v
		cfg.set("log_level", SourceEnv)
	}
	if v, ok := l.get("GITTY_LOG_FORMAT"); ok {
		cfg.LogFormat = v
		cfg.set("log_format", SourceEnv)
	}
	if v, ok := l.get("GITTY_CACHE_MB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.OpError{Op: "config.load_env", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("GITTY_CACHE_MB=%q: %w", v, err)}
		}
		cfg.CacheMB = n
		cfg.set("cache_mb", SourceEnv)
	}
	// NO_COLOR disables color when present with any non-empty value
	if _, ok := l.get("NO_COLOR"); ok {
		cfg.NoColor = true
		cfg.set("no_color", SourceEnv)
	}
	return nil
}

func (l *EnvLoader) get(key string) (string, bool) {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
