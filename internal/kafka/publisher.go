package kafka

import (
	"context"
	"fmt"

	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	v1 "github.com/yourorg/youtube-stats-sampler/internal/schema/v1"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
	"go.uber.org/zap"
)

// Publisher 把成功写入的样本发布为观测事件
// 消息键为频道 serial，同一频道的观测落在同一分区，compacted topic 中保留最新值
type Publisher struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
}

// NewPublisher 创建新的 Publisher
func NewPublisher(producer *Producer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish 编码并异步发送一条观测
func (p *Publisher) Publish(ctx context.Context, tickID, serial string, sample store.Sample) error {
	obs := v1.NewObservationSchema(tickID, serial, sample.Key)
	obs.Subs = sample.Subs
	obs.Views = sample.Views
	obs.Videos = sample.Videos

	value, err := obs.ToJSON()
	if err != nil {
		metrics.KafkaErrorsTotal.WithLabelValues("encode", p.topic).Inc()
		return fmt.Errorf("encode observation: %w", err)
	}

	if err := p.producer.SendMessage(ctx, p.topic, serial, value); err != nil {
		metrics.PublishedTotal.WithLabelValues("dropped").Inc()
		return fmt.Errorf("enqueue observation: %w", err)
	}

	p.logger.Debug("观测已入队",
		zap.String("主题", p.topic),
		zap.String("serial", serial),
		zap.String("Trace ID", obs.TraceID))
	return nil
}

// Topic 目标主题
func (p *Publisher) Topic() string {
	return p.topic
}
