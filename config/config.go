// Package config loads and validates the engine configuration. The
// configuration is a single JSON document describing the NATS connection,
// the metrics endpoint, the storage backend, and the translation pipelines
// to run. Selected fields can be overridden from the environment for
// container deployments.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/natsclient"
)

// Environment variable overrides.
const (
	EnvNATSURL  = "DOCSTREAMS_NATS_URL"
	EnvLogLevel = "DOCSTREAMS_LOG_LEVEL"
)

// Storage backend names.
const (
	BackendFile        = "file"
	BackendObjectStore = "objectstore"
)

// Config is the complete engine configuration.
type Config struct {
	Version   string            `json:"version"`
	LogLevel  string            `json:"log_level,omitempty"`
	NATS      natsclient.Config `json:"nats"`
	Metrics   MetricsConfig     `json:"metrics,omitempty"`
	Storage   StorageConfig     `json:"storage"`
	Pipelines []PipelineConfig  `json:"pipelines"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Port int    `json:"port,omitempty"`
	Path string `json:"path,omitempty"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "file" or "objectstore".
	Backend string `json:"backend"`

	// Root is the directory for the file backend.
	Root string `json:"root,omitempty"`

	// Bucket is the ObjectStore bucket for the objectstore backend.
	Bucket string `json:"bucket,omitempty"`
}

// PipelineConfig describes one translation pipeline: where documents come
// from, which values to extract, and how to assemble and publish the
// derived stream.
type PipelineConfig struct {
	Name string `json:"name"`

	// Input selects the document source.
	Input InputConfig `json:"input"`

	// Sources configures one extractor per output field, in field order.
	Sources []SourceConfig `json:"sources"`

	// Assembler configures the derived stream.
	Assembler AssemblerConfig `json:"assembler"`

	// OutputSubject is the NATS subject prefix derived documents are
	// published under.
	OutputSubject string `json:"output_subject"`

	// Externals names the Record fields whose values are offloaded to blob
	// storage when persisting.
	Externals []string `json:"externals,omitempty"`
}

// InputConfig selects a pipeline's document source.
type InputConfig struct {
	// Type is "nats" or "websocket".
	Type string `json:"type"`

	// Subject is the NATS subject for the nats type.
	Subject string `json:"subject,omitempty"`

	// Addr is the listen address for the websocket type.
	Addr string `json:"addr,omitempty"`

	// Path is the HTTP upgrade path for the websocket type.
	Path string `json:"path,omitempty"`
}

// SourceConfig configures one extractor.
type SourceConfig struct {
	Name      string        `json:"name"`
	DocType   document.Kind `json:"doc_type"`
	Path      []string      `json:"path,omitempty"`
	Stream    string        `json:"stream,omitempty"`
	Principal bool          `json:"principal,omitempty"`
}

// AssemblerConfig configures a pipeline's assembler.
type AssemblerConfig struct {
	Fields   []string       `json:"fields"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Default returns a minimal development configuration.
func Default() *Config {
	return &Config{
		Version:  "1.0.0",
		LogLevel: "info",
		NATS:     natsclient.DefaultConfig(),
		Metrics:  MetricsConfig{Port: 9090, Path: "/metrics"},
		Storage:  StorageConfig{Backend: BackendFile, Root: "data"},
	}
}

// Load reads a Config from a JSON file, applies environment overrides, and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("read %q", path))
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "config unmarshalling")
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if url := os.Getenv(EnvNATSURL); url != "" {
		c.NATS.URL = url
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return invalid("nats.url is required")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Root == "" {
			return invalid("storage.root is required for the file backend")
		}
	case BackendObjectStore:
		if c.Storage.Bucket == "" {
			return invalid("storage.bucket is required for the objectstore backend")
		}
	default:
		return invalid(fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	for i, p := range c.Pipelines {
		if err := p.validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", fmt.Sprintf("pipeline %d", i))
		}
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	if p.Name == "" {
		return invalid("pipeline name is required")
	}

	switch p.Input.Type {
	case "nats":
		if p.Input.Subject == "" {
			return invalid(fmt.Sprintf("pipeline %q: input.subject is required for nats input", p.Name))
		}
	case "websocket":
		if p.Input.Addr == "" {
			return invalid(fmt.Sprintf("pipeline %q: input.addr is required for websocket input", p.Name))
		}
	default:
		return invalid(fmt.Sprintf("pipeline %q: unknown input type %q", p.Name, p.Input.Type))
	}

	if len(p.Sources) == 0 {
		return invalid(fmt.Sprintf("pipeline %q: at least one source is required", p.Name))
	}
	for _, s := range p.Sources {
		if s.Name == "" {
			return invalid(fmt.Sprintf("pipeline %q: source name is required", p.Name))
		}
		if !s.DocType.IsValid() {
			return invalid(fmt.Sprintf("pipeline %q: source %q has invalid doc_type %q", p.Name, s.Name, s.DocType))
		}
	}

	if len(p.Assembler.Fields) != len(p.Sources) {
		return invalid(fmt.Sprintf("pipeline %q: %d assembler fields for %d sources",
			p.Name, len(p.Assembler.Fields), len(p.Sources)))
	}
	if p.OutputSubject == "" {
		return invalid(fmt.Sprintf("pipeline %q: output_subject is required", p.Name))
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg),
		"Config", "Validate", "configuration check")
}
