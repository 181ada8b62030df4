package kafka

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"go.uber.org/zap"
)

// Producer Kafka Producer 封装
type Producer struct {
	producer  sarama.AsyncProducer
	config    *config.KafkaConfig
	logger    *zap.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewProducer 创建新的 Producer
func NewProducer(cfg *config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}

	logger.Info("Kafka Producer 创建成功",
		zap.Strings("代理列表", cfg.Brokers),
		zap.String("主题", cfg.Topic))

	return newProducer(producer, cfg, logger), nil
}

// newProducer 包装已有的 AsyncProducer 并启动结果处理 goroutine
func newProducer(ap sarama.AsyncProducer, cfg *config.KafkaConfig, logger *zap.Logger) *Producer {
	p := &Producer{
		producer: ap,
		config:   cfg,
		logger:   logger,
	}

	p.wg.Add(2)
	go p.handleErrors()
	go p.handleSuccesses()

	metrics.KafkaProducerConnected.Set(1)
	return p
}

// newSaramaConfig 由配置生成 sarama 配置
func newSaramaConfig(cfg *config.KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}

	// 基本配置
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = parseAcks(cfg.Acks)
	saramaConfig.Producer.Compression = parseCompression(cfg.Compression)
	if cfg.MaxMessageBytes > 0 {
		saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	// 批处理配置
	saramaConfig.Producer.Flush.Messages = cfg.Batch.MaxMessages
	saramaConfig.Producer.Flush.Bytes = cfg.Batch.MaxBytes
	saramaConfig.Producer.Flush.Frequency = time.Duration(cfg.Batch.FlushIntervalMs) * time.Millisecond

	// 幂等性要求 acks=all 且单连接单请求
	if cfg.Producer.EnableIdempotence {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Net.MaxOpenRequests = 1
	}

	return saramaConfig
}

// SendMessage 发送消息，key 决定分区
func (p *Producer) SendMessage(ctx context.Context, topic string, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleErrors 处理发送错误
func (p *Producer) handleErrors() {
	defer p.wg.Done()
	for err := range p.producer.Errors() {
		if err == nil {
			continue
		}
		metrics.KafkaErrorsTotal.WithLabelValues("write", err.Msg.Topic).Inc()
		metrics.PublishedTotal.WithLabelValues("failed").Inc()

		var keyStr string
		if keyEncoder, ok := err.Msg.Key.(sarama.StringEncoder); ok {
			keyStr = string(keyEncoder)
		}
		p.logger.Error("发送消息到 Kafka 失败",
			zap.String("主题", err.Msg.Topic),
			zap.String("消息键", keyStr),
			zap.Error(err.Err))
	}
}

// handleSuccesses 处理发送成功
func (p *Producer) handleSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		metrics.PublishedTotal.WithLabelValues("success").Inc()
		if byteEncoder, ok := msg.Value.(sarama.ByteEncoder); ok {
			metrics.KafkaWriteBytesTotal.WithLabelValues(msg.Topic).Add(float64(len(byteEncoder)))
		}
	}
}

// Close 关闭 Producer，等待缓冲中的消息发送完成
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		metrics.KafkaProducerConnected.Set(0)
		err = p.producer.Close()
		p.wg.Wait()
	})
	return err
}

// parseAcks 解析 ACKS 配置，不区分大小写
func parseAcks(acks string) sarama.RequiredAcks {
	switch strings.ToLower(acks) {
	case "all":
		return sarama.WaitForAll
	case "1":
		return sarama.WaitForLocal
	case "0":
		return sarama.NoResponse
	default:
		return sarama.WaitForAll
	}
}

// parseCompression 解析压缩配置，不区分大小写
func parseCompression(compression string) sarama.CompressionCodec {
	switch strings.ToLower(compression) {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
