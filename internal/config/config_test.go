package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Upstream.Key = "test-key"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 50, cfg.Sampler.BatchSize)
	assert.Equal(t, 9999, cfg.Sampler.BatchesPerTick)
	assert.Equal(t, 10*time.Minute, cfg.Store.RecencyHorizon)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgresql://admin@localhost:5432/youtube", cfg.Store.DSN)
	assert.Equal(t, "statistics", cfg.Upstream.Part)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Logger.Console.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing key", func(c *Config) { c.Upstream.Key = "  " }, "upstream.key"},
		{"bad scheme", func(c *Config) { c.Upstream.BaseURL = "ftp://example.com" }, "http or https"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"bad table", func(c *Config) { c.Store.MetricsTable = "metrics; DROP TABLE x" }, "store.metrics_table"},
		{"zero horizon", func(c *Config) { c.Store.RecencyHorizon = 0 }, "recency_horizon"},
		{"zero batch", func(c *Config) { c.Sampler.BatchSize = 0 }, "batch_size must be > 0"},
		{"batch over limit", func(c *Config) { c.Sampler.BatchSize = 51 }, "upstream id limit"},
		{"zero batches", func(c *Config) { c.Sampler.BatchesPerTick = 0 }, "batches_per_tick"},
		{"kafka without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"kafka bad broker", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = []string{"localhost"}
		}, "host:port"},
		{"kafka disabled ignores brokers", func(c *Config) { c.Kafka.Brokers = nil }, ""},
		{"monitoring same ports", func(c *Config) {
			c.Monitoring.Enabled = true
			c.Monitoring.MetricsPort = c.Monitoring.HealthPort
		}, "must be different"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMissingCredential(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, Validate(cfg), ErrMissingCredential)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
upstream:
  timeout: 5s
store:
  driver: sqlite
  recency_horizon: 15m
sampler:
  batch_size: 20
  dedupe_batch: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("YOUTUBE_KEY", "env-key")
	t.Setenv("SAMPLER_BATCHES_PER_TICK", "7")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Upstream.Key)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Store.RecencyHorizon)
	assert.Equal(t, 20, cfg.Sampler.BatchSize)
	assert.Equal(t, 7, cfg.Sampler.BatchesPerTick)
	assert.True(t, cfg.Sampler.DedupeBatch)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)

	// sqlite 驱动下表名去掉 schema 前缀
	assert.Equal(t, "channels", cfg.Store.ChannelsTable)
	assert.Equal(t, "metrics", cfg.Store.MetricsTable)
	assert.NoError(t, Validate(cfg))
}
