package config

import (
	"time"
)

// Config 应用配置
type Config struct {
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Store      StoreConfig      `mapstructure:"store"`
	Sampler    SamplerConfig    `mapstructure:"sampler"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// UpstreamConfig 上游数据 API 配置
type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Key               string        `mapstructure:"key"` // 凭证，启动时从 YOUTUBE_KEY 读取一次
	Part              string        `mapstructure:"part"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // <=0 表示不限速
	UserAgent         string        `mapstructure:"user_agent"`
}

// StoreConfig 指标存储配置
type StoreConfig struct {
	Driver         string        `mapstructure:"driver"` // postgres | sqlite
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int           `mapstructure:"max_conns"`
	ChannelsTable  string        `mapstructure:"channels_table"`
	MetricsTable   string        `mapstructure:"metrics_table"`
	RecencyHorizon time.Duration `mapstructure:"recency_horizon"`
}

// SamplerConfig 加权采样配置
type SamplerConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	BatchesPerTick int           `mapstructure:"batches_per_tick"`
	DedupeBatch    bool          `mapstructure:"dedupe_batch"`
	Seed           int64         `mapstructure:"seed"`             // 0 表示使用时间种子
	EmptyTickPause time.Duration `mapstructure:"empty_tick_pause"` // 仅用于空表/失败的 tick，默认 0
	PrintRecords   bool          `mapstructure:"print_records"`    // 样本记录输出到 stdout
}

// KafkaConfig Kafka 配置（观测数据流，可选）
type KafkaConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	Brokers         []string         `mapstructure:"brokers"`
	ClientID        string           `mapstructure:"client_id"`
	Topic           string           `mapstructure:"topic"`
	Acks            string           `mapstructure:"acks"`
	Compression     string           `mapstructure:"compression"`
	MaxMessageBytes int              `mapstructure:"max_message_bytes"`
	Batch           BatchConfig      `mapstructure:"batch"`
	TopicAdmin      TopicAdminConfig `mapstructure:"topic_admin"`
	Producer        ProducerConfig   `mapstructure:"producer"`
}

// BatchConfig 批处理配置
type BatchConfig struct {
	MaxMessages     int `mapstructure:"max_messages"`
	MaxBytes        int `mapstructure:"max_bytes"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// TopicAdminConfig Topic 管理配置
type TopicAdminConfig struct {
	AutoCreate             bool   `mapstructure:"auto_create"`
	Partitions             int    `mapstructure:"partitions"`
	ReplicationFactor      int16  `mapstructure:"replication_factor"` // <=0 时使用 broker 默认值
	CleanupPolicy          string `mapstructure:"cleanup_policy"`
	MinCleanableDirtyRatio string `mapstructure:"min_cleanable_dirty_ratio"`
	RetentionMs            int64  `mapstructure:"retention_ms"`
}

// ProducerConfig Producer 配置
type ProducerConfig struct {
	EnableIdempotence bool `mapstructure:"enable_idempotence"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level   string           `mapstructure:"level"`
	Format  string           `mapstructure:"format"`
	Output  []string         `mapstructure:"output"`  // 支持多个输出：file, kafka
	Console ConsoleLogConfig `mapstructure:"console"` // Console 输出（stderr）
	File    FileLogConfig    `mapstructure:"file"`
	Kafka   KafkaLogConfig   `mapstructure:"kafka"`
}

// FileLogConfig 文件日志配置
type FileLogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ConsoleLogConfig Console 日志配置
type ConsoleLogConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// KafkaLogConfig Kafka 日志配置
type KafkaLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	HealthPort  int  `mapstructure:"health_port"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:           "https://www.googleapis.com/youtube/v3/channels",
			Part:              "statistics",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
			UserAgent:         "youtube-stats-sampler/1.0",
		},
		Store: StoreConfig{
			Driver:         "postgres",
			DSN:            "postgresql://admin@localhost:5432/youtube",
			MaxConns:       2,
			ChannelsTable:  "stats.channels",
			MetricsTable:   "stats.metrics",
			RecencyHorizon: 10 * time.Minute,
		},
		Sampler: SamplerConfig{
			BatchSize:      50,
			BatchesPerTick: 9999,
			DedupeBatch:    false,
			Seed:           0,
			EmptyTickPause: 0,
			PrintRecords:   true,
		},
		Kafka: KafkaConfig{
			Enabled:         false,
			Brokers:         []string{"localhost:9092"},
			ClientID:        "youtube-stats-sampler",
			Topic:           "youtube.channel.statistics",
			Acks:            "all",
			Compression:     "snappy",
			MaxMessageBytes: 1048576,
			Batch: BatchConfig{
				MaxMessages:     500,
				MaxBytes:        1048576,
				FlushIntervalMs: 100,
			},
			TopicAdmin: TopicAdminConfig{
				AutoCreate:             false,
				Partitions:             6,
				ReplicationFactor:      0,
				CleanupPolicy:          "compact",
				MinCleanableDirtyRatio: "0.5",
				RetentionMs:            604800000,
			},
			Producer: ProducerConfig{
				EnableIdempotence: true,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: []string{}, // 默认只输出到 stderr
			Console: ConsoleLogConfig{
				Enabled: true,
			},
			File: FileLogConfig{
				Path:       "/var/log/youtube-stats-sampler/app.log",
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 7,
			},
			Kafka: KafkaLogConfig{
				Enabled: false,
				Topic:   "youtube.sampler.logs",
			},
		},
		Monitoring: MonitoringConfig{
			Enabled:     false,
			HealthPort:  8080,
			MetricsPort: 9090,
		},
	}
}

// ApplyDriverDefaults 按存储驱动补全表名默认值
// sqlite 没有 schema 概念，默认表名去掉 "stats." 前缀
func (c *Config) ApplyDriverDefaults() {
	if c.Store.Driver != "sqlite" {
		return
	}
	if c.Store.ChannelsTable == "stats.channels" {
		c.Store.ChannelsTable = "channels"
	}
	if c.Store.MetricsTable == "stats.metrics" {
		c.Store.MetricsTable = "metrics"
	}
	if c.Store.DSN == DefaultConfig().Store.DSN {
		c.Store.DSN = "file:youtube.db?_busy_timeout=5000"
	}
}
