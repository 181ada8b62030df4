package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load 加载配置（支持 YAML 文件和环境变量）
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// 使用独立的 Viper 实例，避免多次加载时共享全局状态
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 读取配置文件（如果存在）
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDriverDefaults()

	return cfg, nil
}

// bindEnvVars 绑定环境变量到配置
func bindEnvVars(v *viper.Viper) {
	// 上游 API
	v.BindEnv("upstream.key", "YOUTUBE_KEY")
	v.BindEnv("upstream.base_url", "YOUTUBE_API_URL")
	v.BindEnv("upstream.timeout", "UPSTREAM_TIMEOUT")
	v.BindEnv("upstream.requests_per_second", "UPSTREAM_REQUESTS_PER_SECOND")

	// 存储
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.dsn", "DATABASE_URL")
	v.BindEnv("store.recency_horizon", "RECENCY_HORIZON")

	// 采样
	v.BindEnv("sampler.batch_size", "SAMPLER_BATCH_SIZE")
	v.BindEnv("sampler.batches_per_tick", "SAMPLER_BATCHES_PER_TICK")
	v.BindEnv("sampler.dedupe_batch", "SAMPLER_DEDUPE_BATCH")
	v.BindEnv("sampler.seed", "SAMPLER_SEED")

	// Kafka
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.client_id", "KAFKA_CLIENT_ID")
	v.BindEnv("kafka.acks", "KAFKA_ACKS")
	v.BindEnv("kafka.compression", "KAFKA_COMPRESSION")
	v.BindEnv("kafka.topic_admin.auto_create", "KAFKA_TOPIC_AUTO_CREATE")

	// 日志
	v.BindEnv("logger.level", "LOG_LEVEL")

	// 处理 KAFKA_BROKERS（逗号分隔的字符串）
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		brokerList := strings.Split(brokers, ",")
		for i, broker := range brokerList {
			brokerList[i] = strings.TrimSpace(broker)
		}
		v.Set("kafka.brokers", brokerList)
	}
}
