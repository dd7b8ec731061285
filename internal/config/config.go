// Package config loads and validates discgraph.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/keys"
	"github.com/dyluth/discgraph/internal/ledger"
	"github.com/dyluth/discgraph/internal/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvRedisURL       = "DISCGRAPH_REDIS_URL"
	EnvLedgerEndpoint = "DISCGRAPH_LEDGER_ENDPOINT"
	EnvNamespace      = "DISCGRAPH_NAMESPACE"
	EnvListenAddr     = "DISCGRAPH_LISTEN_ADDR"
	EnvStorePath      = "DISCGRAPH_STORE_PATH"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

// Config represents the top-level discgraph.yml configuration
type Config struct {
	Version    string           `yaml:"version"`
	Namespace  string           `yaml:"namespace"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Decoder    DecoderConfig    `yaml:"decoder"`
	Query      QueryConfig      `yaml:"query"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig selects the graph store backend
type StoreConfig struct {
	Backend string `yaml:"backend"`        // "redis" (default) or "pebble"
	Path    string `yaml:"path,omitempty"` // pebble data directory
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type LedgerConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	Commitment         string        `yaml:"commitment"`
	Timeout            time.Duration `yaml:"timeout"`
	ValidateProgramIDs bool          `yaml:"validate_program_ids"`
}

type ReconcilerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Programs          []string      `yaml:"programs,omitempty"`
	DiscoverFromStore bool          `yaml:"discover_from_store"`
}

// DecoderConfig is the record layout. payload_len 0 takes the remainder of the record.
type DecoderConfig struct {
	HeaderLen  int `yaml:"header_len"`
	PayloadLen int `yaml:"payload_len"`
}

type QueryConfig struct {
	BatchPolicy string `yaml:"batch_policy"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Error reports an invalid configuration value.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err carries a *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:   "1.0",
		Namespace: "default",
		Store:     StoreConfig{Backend: BackendRedis},
		Redis:     RedisConfig{URL: "redis://localhost:6379/0"},
		Ledger: LedgerConfig{
			Endpoint:   "https://api.devnet.solana.com",
			Commitment: ledger.CommitmentConfirmed,
			Timeout:    30 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Interval:          10 * time.Second,
			DiscoverFromStore: true,
		},
		Decoder: DecoderConfig{HeaderLen: decoder.DefaultHeaderLen},
		Query:   QueryConfig{BatchPolicy: string(ingest.BatchFailFast)},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Log:     LogConfig{Level: "info", Format: logging.FormatJSON},
	}
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return &Error{Field: "version", Reason: fmt.Sprintf("unsupported version: %s (expected: 1.0)", c.Version)}
	}

	if c.Namespace == "" {
		return &Error{Field: "namespace", Reason: "namespace is required"}
	}
	if keys.Sanitize(c.Namespace) != c.Namespace {
		return &Error{Field: "namespace", Reason: fmt.Sprintf("%q may only contain letters, digits, '_', '.' and '-'", c.Namespace)}
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.URL == "" {
			return &Error{Field: "redis.url", Reason: "redis url is required"}
		}
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return &Error{Field: "redis.url", Reason: err.Error()}
		}
	case BackendPebble:
		if c.Store.Path == "" {
			return &Error{Field: "store.path", Reason: "path is required for the pebble backend"}
		}
	default:
		return &Error{Field: "store.backend", Reason: fmt.Sprintf("invalid backend: %s (must be '%s' or '%s')", c.Store.Backend, BackendRedis, BackendPebble)}
	}

	if c.Ledger.Endpoint == "" {
		return &Error{Field: "ledger.endpoint", Reason: "endpoint is required"}
	}
	switch c.Ledger.Commitment {
	case ledger.CommitmentProcessed, ledger.CommitmentConfirmed, ledger.CommitmentFinalized:
	default:
		return &Error{Field: "ledger.commitment", Reason: fmt.Sprintf("invalid commitment: %s (must be 'processed', 'confirmed' or 'finalized')", c.Ledger.Commitment)}
	}
	if c.Ledger.Timeout <= 0 {
		return &Error{Field: "ledger.timeout", Reason: "timeout must be > 0"}
	}

	if c.Reconciler.Interval <= 0 {
		return &Error{Field: "reconciler.interval", Reason: "interval must be > 0"}
	}
	for _, id := range c.Reconciler.Programs {
		if id == "" {
			return &Error{Field: "reconciler.programs", Reason: "program id cannot be empty"}
		}
		if c.Ledger.ValidateProgramIDs {
			if err := ledger.ValidateProgramID(id); err != nil {
				return &Error{Field: "reconciler.programs", Reason: err.Error()}
			}
		}
	}

	if err := c.DecoderLayout().Validate(); err != nil {
		return &Error{Field: "decoder", Reason: err.Error()}
	}

	if _, err := ingest.ParseBatchPolicy(c.Query.BatchPolicy); err != nil {
		return &Error{Field: "query.batch_policy", Reason: err.Error()}
	}

	if c.Server.Addr == "" {
		return &Error{Field: "server.addr", Reason: "listen address is required"}
	}

	if _, err := logging.New(logging.Options{Level: c.Log.Level, Format: c.Log.Format}); err != nil {
		return &Error{Field: "log", Reason: err.Error()}
	}

	return nil
}

// DecoderLayout converts the decoder section.
func (c *Config) DecoderLayout() decoder.Layout {
	return decoder.Layout{HeaderLen: c.Decoder.HeaderLen, PayloadLen: c.Decoder.PayloadLen}
}

// BatchPolicy returns the parsed query batch policy. Only valid after Validate.
func (c *Config) BatchPolicy() ingest.BatchPolicy {
	p, _ := ingest.ParseBatchPolicy(c.Query.BatchPolicy)
	return p
}

// LoggingOptions converts the log section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

// ApplyEnv overrides file values with any DISCGRAPH_* variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(EnvLedgerEndpoint); v != "" {
		c.Ledger.Endpoint = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
}

// Load reads discgraph.yml from path on top of the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
