package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/domain"
)

// Validate checks the resolved configuration
func Validate(cfg Config) error {
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		return &domain.OpError{
			Op:   "config.validate",
			Kind: domain.KindInvalidConfig,
			Path: cfg.Path,
			Err:  fmt.Errorf("log_level %q is not one of trace, debug, info, warn, error, fatal, panic, disabled: %w", cfg.LogLevel, domain.ErrInvalidConfig),
		}
	}
	if cfg.LogFormat != LogFormatConsole && cfg.LogFormat != LogFormatJSON {
		return &domain.OpError{
			Op:   "config.validate",
			Kind: domain.KindInvalidConfig,
			Path: cfg.Path,
			Err:  fmt.Errorf("log_format %q must be console or json: %w", cfg.LogFormat, domain.ErrInvalidConfig),
		}
	}
	if cfg.CacheMB <= 0 {
		return &domain.OpError{
			Op:   "config.validate",
			Kind: domain.KindInvalidConfig,
			Path: cfg.Path,
			Err:  fmt.Errorf("cache_mb must be positive, got %d: %w", cfg.CacheMB, domain.ErrInvalidConfig),
		}
	}
	return nil
}
