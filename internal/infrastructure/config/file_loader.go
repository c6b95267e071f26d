package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"gitty.dev/cli/internal/core/domain"
)

// yamlConfig mirrors config.yaml; pointer fields distinguish "unset"
// from zero values
type yamlConfig struct {
	GitDir    *string `yaml:"git_dir"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
	CacheMB   *int    `yaml:"cache_mb"`
	NoColor   *bool   `yaml:"no_color"`
}

// LoadFile applies the YAML file at path over cfg. A missing file is
// reported as KindNotFound so callers can decide whether it matters.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &domain.OpError{Op: "config.load_file", Kind: domain.KindNotFound, Path: path, Err: err}
	}
	if err != nil {
		return &domain.OpError{Op: "config.load_file", Kind: domain.KindIO, Path: path, Err: err}
	}

	var dto yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		return &domain.OpError{Op: "config.load_file", Kind: domain.KindInvalidConfig, Path: path, Err: err}
	}

	if dto.GitDir != nil {
		cfg.GitDir = *dto.GitDir
		cfg.set("git_dir", SourceFile)
	}
	if dto.LogLevel != nil {
		cfg.LogLevel = *dto.LogLevel
		cfg.set("log_level", SourceFile)
	}
	if dto.LogFormat != nil {
		cfg.LogFormat = *dto.LogFormat
		cfg.set("log_format", SourceFile)
	}
	if dto.CacheMB != nil {
		cfg.CacheMB = *dto.CacheMB
		cfg.set("cache_mb", SourceFile)
	}
	if dto.NoColor != nil {
		cfg.NoColor = *dto.NoColor
		cfg.set("no_color", SourceFile)
	}
	cfg.Path = path
	return nil
}
