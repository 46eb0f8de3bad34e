// Package config loads YAML configuration with environment variable
// substitution.
//
// Files may reference the environment as ${NAME} or ${NAME:default};
// unset variables without a default expand to the empty string.
// Load fills any YAML-tagged struct, and Config is the engine
// configuration the CLI loads at startup.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/performance"
)

// Config carries the engine settings shared by every CLI command.
type Config struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Dataset DatasetConfig `yaml:"dataset" json:"dataset"`
	Memory  MemoryConfig  `yaml:"memory" json:"memory"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level"`
	Development bool     `yaml:"development" json:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// TracingConfig controls OpenTelemetry tracing. Off by default.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DatasetConfig sets dataset reader defaults.
type DatasetConfig struct {
	// ChunkRows fixes the CSV chunk size; zero defers to the memory
	// advisor.
	ChunkRows        int  `yaml:"chunk_rows" json:"chunk_rows"`
	DisableInference bool `yaml:"disable_inference" json:"disable_inference"`
}

// MemoryConfig tunes the chunk-size advisor. Zero fields keep the
// advisor defaults.
type MemoryConfig struct {
	Fraction    float64 `yaml:"fraction" json:"fraction"`
	MinRows     int     `yaml:"min_rows" json:"min_rows"`
	MaxRows     int     `yaml:"max_rows" json:"max_rows"`
	DefaultRows int     `yaml:"default_rows" json:"default_rows"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
	}
}

// Validate checks field values. Violations are ConfigErrors.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown log encoding %q", c.Logging.Encoding)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics enabled without a listen address")
	}
	if c.Memory.Fraction < 0 || c.Memory.Fraction > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "memory fraction %v outside [0, 1]", c.Memory.Fraction)
	}
	if c.Dataset.ChunkRows < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "negative chunk_rows %d", c.Dataset.ChunkRows)
	}
	return nil
}

// LoggerConfig maps the logging section to the logger package.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// AdvisorConfig maps the memory section to the performance advisor.
func (c *Config) AdvisorConfig() performance.AdvisorConfig {
	return performance.AdvisorConfig{
		MemoryFraction: c.Memory.Fraction,
		MinRows:        c.Memory.MinRows,
		MaxRows:        c.Memory.MaxRows,
		DefaultRows:    c.Memory.DefaultRows,
	}
}

// Load reads a YAML file into out after environment substitution.
func Load(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "reading config file %s", path)
	}
	content := ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "parsing config file %s", path)
	}
	return nil
}

// LoadConfig reads an engine configuration, layering the file over
// Default and validating the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes v to path as YAML.
func Save(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "marshaling config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeIO, "writing config file %s", path)
	}
	return nil
}

// ExpandEnv replaces ${NAME} and ${NAME:default} references with
// environment values. Substituted text is rescanned, so values may
// themselves hold references.
func ExpandEnv(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":")
		value, ok := os.LookupEnv(name)
		if !ok && hasFallback {
			value = fallback
		}
		content = content[:start] + value + content[end+1:]
	}
	return content
}
