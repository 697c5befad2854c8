package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"eventd/internal/common/fsutil"
)

// Sink types understood by Build.
const (
	SinkConsole    = "console"
	SinkJSONL      = "jsonl"
	SinkPrometheus = "prometheus"
	SinkMemory     = "memory"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr         = ":8080"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds runtime parameters for eventd.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	RootKey      string `json:"root_key" yaml:"root_key" toml:"root_key"`
	QueueSize    int    `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// Disabled starts the dispatcher switched off.
	Disabled bool         `json:"disabled" yaml:"disabled" toml:"disabled"`
	CORS     CORSConfig   `json:"cors" yaml:"cors" toml:"cors"`
	Sinks    []SinkConfig `json:"sinks" yaml:"sinks" toml:"sinks"`
}

// CORSConfig is opt-in; nothing is mounted unless Enabled.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// SinkConfig describes one registered sink. Technical and Pretty are
// pointers so that an omitted key keeps the sink type's default.
type SinkConfig struct {
	Type      string `json:"type" yaml:"type" toml:"type"`
	Name      string `json:"name" yaml:"name" toml:"name"`
	Technical *bool  `json:"technical" yaml:"technical" toml:"technical"`
	Disabled  bool   `json:"disabled" yaml:"disabled" toml:"disabled"`
	Path      string `json:"path" yaml:"path" toml:"path"`
	Pretty    *bool  `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Default is the configuration used when no file is given: a single console
// sink, which is technical.
func Default() Config {
	cfg := Config{Sinks: []SinkConfig{{Type: SinkConsole}}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	for i := range c.Sinks {
		c.Sinks[i].Type = strings.ToLower(strings.TrimSpace(c.Sinks[i].Type))
	}
}

var errNoTechnical = errors.New("at least one sink must be technical")

// Validate reports every problem found, joined. Call ApplyDefaults first.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want json or console", c.LogFormat))
	}
	technical := false
	for i, s := range c.Sinks {
		switch s.Type {
		case SinkConsole, SinkPrometheus, SinkMemory:
		case SinkJSONL:
			if s.Path == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: jsonl sink requires path", i))
			} else if p, err := fsutil.ExpandHome(s.Path); err != nil {
				errs = append(errs, fmt.Errorf("sinks[%d]: %w", i, err))
			} else if !fsutil.DirExists(p) {
				errs = append(errs, fmt.Errorf("sinks[%d]: directory for %s does not exist", i, p))
			}
		default:
			errs = append(errs, fmt.Errorf("sinks[%d]: unknown sink type %q", i, s.Type))
		}
		if s.IsTechnical() {
			technical = true
		}
	}
	if len(c.Sinks) > 0 && !technical {
		errs = append(errs, errNoTechnical)
	}
	return errors.Join(errs...)
}

// IsTechnical resolves the technical flag against the type default: console
// sinks are technical unless told otherwise, everything else is not.
func (s SinkConfig) IsTechnical() bool {
	if s.Technical != nil {
		return *s.Technical
	}
	return s.Type == SinkConsole
}

// IsPretty reports whether a console sink indents its properties. Console
// output is pretty unless told otherwise.
func (s SinkConfig) IsPretty() bool {
	return s.Pretty == nil || *s.Pretty
}
