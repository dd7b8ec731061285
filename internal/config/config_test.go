package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "discgraph.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
namespace: devnet
redis:
  url: redis://cache:6379/2
ledger:
  endpoint: https://rpc.example.com
  commitment: finalized
  timeout: 5s
reconciler:
  interval: 30s
  programs: ["P1", "P2"]
decoder:
  header_len: 4
  payload_len: 16
query:
  batch_policy: skip_and_continue
server:
  addr: ":9090"
log:
  level: debug
  format: console
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "devnet", config.Namespace)
	assert.Equal(t, "redis://cache:6379/2", config.Redis.URL)
	assert.Equal(t, "finalized", config.Ledger.Commitment)
	assert.Equal(t, 5*time.Second, config.Ledger.Timeout)
	assert.Equal(t, 30*time.Second, config.Reconciler.Interval)
	assert.Equal(t, []string{"P1", "P2"}, config.Reconciler.Programs)
	assert.True(t, config.Reconciler.DiscoverFromStore, "unset fields keep their defaults")
	assert.Equal(t, decoder.Layout{HeaderLen: 4, PayloadLen: 16}, config.DecoderLayout())
	assert.Equal(t, ingest.BatchSkipAndContinue, config.BatchPolicy())
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, "console", config.LoggingOptions().Format)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Namespace, config.Namespace)
	assert.Equal(t, 10*time.Second, config.Reconciler.Interval)
	assert.Equal(t, decoder.DefaultLayout, config.DecoderLayout())
	assert.Equal(t, ingest.BatchFailFast, config.BatchPolicy())
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/discgraph.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
reconciler:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://override:6379/0")
	t.Setenv(EnvLedgerEndpoint, "http://localhost:8899")
	t.Setenv(EnvNamespace, "from-env")
	t.Setenv(EnvListenAddr, ":7000")

	configPath := writeConfig(t, `version: "1.0"
namespace: from-file
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "redis://override:6379/0", config.Redis.URL)
	assert.Equal(t, "http://localhost:8899", config.Ledger.Endpoint)
	assert.Equal(t, "from-env", config.Namespace)
	assert.Equal(t, ":7000", config.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unsupported version", func(c *Config) { c.Version = "2.0" }, "version"},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, "namespace"},
		{"namespace with separator", func(c *Config) { c.Namespace = "a:b" }, "namespace"},
		{"bad redis url", func(c *Config) { c.Redis.URL = "http://nope" }, "redis.url"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "arango" }, "store.backend"},
		{"pebble without path", func(c *Config) { c.Store.Backend = BackendPebble }, "store.path"},
		{"missing endpoint", func(c *Config) { c.Ledger.Endpoint = "" }, "ledger.endpoint"},
		{"bad commitment", func(c *Config) { c.Ledger.Commitment = "max" }, "ledger.commitment"},
		{"zero timeout", func(c *Config) { c.Ledger.Timeout = 0 }, "ledger.timeout"},
		{"zero interval", func(c *Config) { c.Reconciler.Interval = 0 }, "reconciler.interval"},
		{"empty program", func(c *Config) { c.Reconciler.Programs = []string{""} }, "reconciler.programs"},
		{"non-base58 program", func(c *Config) {
			c.Ledger.ValidateProgramIDs = true
			c.Reconciler.Programs = []string{"P0"}
		}, "reconciler.programs"},
		{"zero header", func(c *Config) { c.Decoder.HeaderLen = 0 }, "decoder"},
		{"bad policy", func(c *Config) { c.Query.BatchPolicy = "retry" }, "query.batch_policy"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	t.Run("pebble with path", func(t *testing.T) {
		config := Default()
		config.Store = StoreConfig{Backend: BackendPebble, Path: t.TempDir()}
		assert.NoError(t, config.Validate())
	})
}
