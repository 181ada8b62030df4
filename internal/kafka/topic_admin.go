package kafka

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"go.uber.org/zap"
)

// TopicAdmin Topic 管理
type TopicAdmin struct {
	admin  sarama.ClusterAdmin
	config *config.TopicAdminConfig
	logger *zap.Logger
}

// NewTopicAdmin 创建新的 TopicAdmin
func NewTopicAdmin(cfg *config.KafkaConfig, logger *zap.Logger) (*TopicAdmin, error) {
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		logger.Error("创建 Kafka 集群管理员失败",
			zap.Strings("代理列表", cfg.Brokers),
			zap.Error(err))
		return nil, err
	}

	logger.Info("Kafka 集群管理员创建成功",
		zap.Strings("代理列表", cfg.Brokers))

	return &TopicAdmin{
		admin:  admin,
		config: &cfg.TopicAdmin,
		logger: logger,
	}, nil
}

// EnsureTopic 确保观测 topic 存在；自动创建关闭时直接跳过
func (ta *TopicAdmin) EnsureTopic(ctx context.Context, topic string) error {
	if !ta.config.AutoCreate {
		ta.logger.Info("Topic 自动创建已禁用，跳过", zap.String("主题", topic))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	topics, err := ta.admin.ListTopics()
	if err != nil {
		metrics.KafkaTopicCreateTotal.WithLabelValues("failed").Inc()
		return err
	}
	if _, exists := topics[topic]; exists {
		ta.logger.Info("Topic 已存在，跳过创建", zap.String("主题", topic))
		metrics.KafkaTopicCreateTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	detail := topicDetail(ta.config)
	if err := ta.admin.CreateTopic(topic, detail, false); err != nil {
		metrics.KafkaTopicCreateTotal.WithLabelValues("failed").Inc()
		return err
	}

	ta.logger.Info("已创建 Topic",
		zap.String("主题", topic),
		zap.Int32("分区数", detail.NumPartitions),
		zap.Int16("副本因子", detail.ReplicationFactor))
	metrics.KafkaTopicCreateTotal.WithLabelValues("success").Inc()
	return nil
}

// Close 关闭 TopicAdmin
func (ta *TopicAdmin) Close() error {
	return ta.admin.Close()
}

// topicDetail 由配置生成 topic 详情
// 分区数和副本因子 <=0 时交给 broker 默认值（-1）
func topicDetail(cfg *config.TopicAdminConfig) *sarama.TopicDetail {
	partitions := int32(cfg.Partitions)
	if partitions <= 0 {
		partitions = -1
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = -1
	}

	entries := map[string]*string{}
	if cfg.CleanupPolicy != "" {
		entries["cleanup.policy"] = stringPtr(cfg.CleanupPolicy)
		if cfg.CleanupPolicy == "compact" && cfg.MinCleanableDirtyRatio != "" {
			entries["min.cleanable.dirty.ratio"] = stringPtr(cfg.MinCleanableDirtyRatio)
		}
	}
	if cfg.RetentionMs > 0 {
		entries["retention.ms"] = stringPtr(strconv.FormatInt(cfg.RetentionMs, 10))
	}

	return &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replication,
		ConfigEntries:     entries,
	}
}

func stringPtr(s string) *string {
	return &s
}
