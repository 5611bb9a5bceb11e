package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the ggufmerge configuration file
// (~/.config/ggufmerge/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Alignment       *int64 `yaml:"alignment"`
	ReadConcurrency *int64 `yaml:"read_concurrency"`
	Verify          *bool  `yaml:"verify"`
	RemovePartial   *bool  `yaml:"remove_partial"`
	OutDir          string `yaml:"out_dir"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ggufmerge", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file logging defaults when the
// corresponding root flag was not explicitly set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyMergeConfig applies config file defaults to merge command variables.
func applyMergeConfig(c *cli.Command, cfg Config,
	alignment *int64, readConcurrency *int64, verify *bool, removePartial *bool,
) {
	if cfg.Alignment != nil && !c.IsSet("alignment") {
		*alignment = *cfg.Alignment
	}
	if cfg.ReadConcurrency != nil && !c.IsSet("read-concurrency") {
		*readConcurrency = *cfg.ReadConcurrency
	}
	if cfg.Verify != nil && !c.IsSet("verify") {
		*verify = *cfg.Verify
	}
	if cfg.RemovePartial != nil && !c.IsSet("remove-partial") {
		*removePartial = *cfg.RemovePartial
	}
}
