package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MaxBatchSize 上游 API 单次请求允许的最大 id 数量
const MaxBatchSize = 50

// ErrMissingCredential 未配置上游 API 凭证
var ErrMissingCredential = errors.New("upstream.key is required (set YOUTUBE_KEY)")

// tableNamePattern 允许 "table" 或 "schema.table"
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate 验证配置
func Validate(cfg *Config) error {
	// 验证上游配置
	if strings.TrimSpace(cfg.Upstream.Key) == "" {
		return ErrMissingCredential
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid upstream.base_url '%s': %w", cfg.Upstream.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https, got '%s'", u.Scheme)
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}
	if cfg.Upstream.RequestsPerSecond < 0 {
		return fmt.Errorf("upstream.requests_per_second must be >= 0")
	}

	// 验证存储配置
	switch cfg.Store.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("store.driver must be one of: postgres, sqlite")
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if !tableNamePattern.MatchString(cfg.Store.ChannelsTable) {
		return fmt.Errorf("invalid store.channels_table '%s'", cfg.Store.ChannelsTable)
	}
	if !tableNamePattern.MatchString(cfg.Store.MetricsTable) {
		return fmt.Errorf("invalid store.metrics_table '%s'", cfg.Store.MetricsTable)
	}
	if cfg.Store.RecencyHorizon <= 0 {
		return fmt.Errorf("store.recency_horizon must be > 0")
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.MaxConns <= 0 {
		return fmt.Errorf("store.max_conns must be > 0")
	}

	// 验证采样配置
	if cfg.Sampler.BatchSize <= 0 {
		return fmt.Errorf("sampler.batch_size must be > 0")
	}
	if cfg.Sampler.BatchSize > MaxBatchSize {
		return fmt.Errorf("sampler.batch_size must be <= %d (upstream id limit)", MaxBatchSize)
	}
	if cfg.Sampler.BatchesPerTick <= 0 {
		return fmt.Errorf("sampler.batches_per_tick must be > 0")
	}
	if cfg.Sampler.EmptyTickPause < 0 {
		return fmt.Errorf("sampler.empty_tick_pause must be >= 0")
	}

	// 验证 Kafka 配置（仅在启用时）
	if cfg.Kafka.Enabled || cfg.Logger.Kafka.Enabled {
		if err := validateKafka(&cfg.Kafka); err != nil {
			return err
		}
	}

	// 验证监控配置
	if cfg.Monitoring.Enabled {
		if cfg.Monitoring.HealthPort <= 0 || cfg.Monitoring.HealthPort > 65535 {
			return fmt.Errorf("monitoring.health_port must be between 1 and 65535")
		}
		if cfg.Monitoring.MetricsPort <= 0 || cfg.Monitoring.MetricsPort > 65535 {
			return fmt.Errorf("monitoring.metrics_port must be between 1 and 65535")
		}
		if cfg.Monitoring.HealthPort == cfg.Monitoring.MetricsPort {
			return fmt.Errorf("monitoring.health_port and metrics_port must be different")
		}
	}

	return nil
}

func validateKafka(cfg *KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	for _, broker := range cfg.Brokers {
		if broker == "" {
			return fmt.Errorf("kafka.brokers contains empty broker")
		}
		// 验证 broker 地址格式 (host:port)
		host, port, err := net.SplitHostPort(broker)
		if err != nil {
			return fmt.Errorf("invalid kafka broker address format '%s': %w (expected host:port)", broker, err)
		}
		if host == "" {
			return fmt.Errorf("kafka broker address '%s' has empty host", broker)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port in kafka broker address '%s': %w", broker, err)
		}
		if portNum <= 0 || portNum > 65535 {
			return fmt.Errorf("invalid port number %d in kafka broker address '%s' (must be 1-65535)", portNum, broker)
		}
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("kafka.client_id is required")
	}

	validAcks := map[string]bool{"all": true, "1": true, "0": true}
	if !validAcks[strings.ToLower(cfg.Acks)] {
		return fmt.Errorf("kafka.acks must be one of: all, 1, 0")
	}

	validCompression := map[string]bool{"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true}
	if !validCompression[strings.ToLower(cfg.Compression)] {
		return fmt.Errorf("kafka.compression must be one of: none, gzip, snappy, lz4, zstd")
	}

	if cfg.Batch.MaxMessages <= 0 {
		return fmt.Errorf("kafka.batch.max_messages must be > 0")
	}
	if cfg.Batch.FlushIntervalMs <= 0 {
		return fmt.Errorf("kafka.batch.flush_interval_ms must be > 0")
	}
	if cfg.Batch.MaxBytes <= 0 {
		return fmt.Errorf("kafka.batch.max_bytes must be > 0")
	}
	return nil
}
