package stepflow

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/viant/afs"
	"github.com/viant/stepflow/service/meta"
	"github.com/viant/stepflow/service/processor"
	"github.com/viant/stepflow/service/runner"
	"github.com/viant/stepflow/story"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFS     = "fs"
	StoreSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override, e.g. STEPFLOW_STORE_KIND.
const EnvPrefix = "STEPFLOW_"

// Config is a serialisable representation of the engine configuration.  It
// can be populated from YAML or JSON and overridden from the environment.
type Config struct {
	Processor processor.Config `json:"processor" yaml:"processor" envPrefix:"PROCESSOR_"`
	Runner    runner.Config    `json:"runner" yaml:"runner" envPrefix:"RUNNER_"`
	Store     StoreConfig      `json:"store" yaml:"store" envPrefix:"STORE_"`
	Queue     QueueConfig      `json:"queue" yaml:"queue" envPrefix:"QUEUE_"`
	Blob      BlobConfig       `json:"blob" yaml:"blob" envPrefix:"BLOB_"`
	HTTP      HTTPConfig       `json:"http" yaml:"http" envPrefix:"HTTP_"`
	Story     story.Config     `json:"story" yaml:"story" envPrefix:"STORY_"`
	Tracing   TracingConfig    `json:"tracing" yaml:"tracing" envPrefix:"TRACING_"`
}

// StoreConfig selects the instance, step record and subject state backends.
type StoreConfig struct {
	// Kind is memory, fs or sqlite.  Instances are kept in memory unless
	// URL is set or Kind is fs.
	Kind string `json:"kind" yaml:"kind" env:"KIND"`
	// URL roots the fs backends (any afs scheme).
	URL string `json:"url" yaml:"url" env:"URL"`
	// Database is the sqlite file holding subscriptions, and step records
	// and subject state for the sqlite kind.
	Database string `json:"database" yaml:"database" env:"DATABASE"`
}

// QueueConfig selects the work queue.
type QueueConfig struct {
	// Kind is memory or fs.
	Kind            string        `json:"kind" yaml:"kind" env:"KIND"`
	URL             string        `json:"url" yaml:"url" env:"URL"`
	MaxRedeliveries int           `json:"maxRedeliveries" yaml:"maxRedeliveries" env:"MAX_REDELIVERIES"`
	RedeliveryDelay time.Duration `json:"redeliveryDelay" yaml:"redeliveryDelay" env:"REDELIVERY_DELAY"`
	PollInterval    time.Duration `json:"pollInterval" yaml:"pollInterval" env:"POLL_INTERVAL"`
}

// BlobConfig locates the image cache.
type BlobConfig struct {
	URL string `json:"url" yaml:"url" env:"URL"`
	// PublicBase is the URL cached objects are served from.
	PublicBase string `json:"publicBase" yaml:"publicBase" env:"PUBLIC_BASE"`
}

// HTTPConfig controls outbound calls.
type HTTPConfig struct {
	UserAgent     string        `json:"userAgent" yaml:"userAgent" env:"USER_AGENT"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	NotifyTimeout time.Duration `json:"notifyTimeout" yaml:"notifyTimeout" env:"NOTIFY_TIMEOUT"`
}

// TracingConfig enables the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Service string `json:"service" yaml:"service" env:"SERVICE"`
	// Output is a file path; empty writes to stdout.
	Output string `json:"output" yaml:"output" env:"OUTPUT"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() *Config {
	return &Config{
		Processor: processor.DefaultConfig(),
		Runner:    runner.DefaultConfig(),
		Store:     StoreConfig{Kind: StoreMemory, Database: ":memory:"},
		Queue:     QueueConfig{Kind: StoreMemory, MaxRedeliveries: 3, RedeliveryDelay: 100 * time.Millisecond, PollInterval: 250 * time.Millisecond},
		Blob:      BlobConfig{URL: "mem://localhost/stepflow/blob"},
		HTTP: HTTPConfig{
			UserAgent:     "stepflow (+https://github.com/viant/stepflow)",
			Timeout:       15 * time.Second,
			NotifyTimeout: 10 * time.Second,
		},
		Story:   story.DefaultConfig(),
		Tracing: TracingConfig{Service: "stepflow"},
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Processor.WorkerCount <= 0 {
		return fmt.Errorf("processor.workerCount must be > 0")
	}
	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	switch c.Store.Kind {
	case StoreMemory, StoreSQLite:
	case StoreFS:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the fs store")
		}
	default:
		return fmt.Errorf("unsupported store.kind %q", c.Store.Kind)
	}
	if c.Store.Database == "" {
		return fmt.Errorf("store.database was empty")
	}
	switch c.Queue.Kind {
	case StoreMemory:
	case StoreFS:
		if c.Queue.URL == "" {
			return fmt.Errorf("queue.url is required for the fs queue")
		}
	default:
		return fmt.Errorf("unsupported queue.kind %q", c.Queue.Kind)
	}
	if c.Blob.URL == "" {
		return fmt.Errorf("blob.url was empty")
	}
	if c.HTTP.Timeout <= 0 || c.HTTP.NotifyTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if err := c.Story.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads the YAML or JSON document at URL over the defaults and
// applies STEPFLOW_* environment overrides.  An empty URL skips the
// document.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	cfg := DefaultConfig()
	if URL != "" {
		if err := meta.New(afs.New(), "").Load(ctx, URL, cfg); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
