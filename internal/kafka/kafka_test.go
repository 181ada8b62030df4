package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
	"go.uber.org/zap"
)

func testKafkaConfig() *config.KafkaConfig {
	cfg := config.DefaultConfig().Kafka
	return &cfg
}

func newMockProducer(t *testing.T) (*mocks.AsyncProducer, *Producer) {
	saramaCfg := mocks.NewTestConfig()
	saramaCfg.Producer.Return.Successes = true
	ap := mocks.NewAsyncProducer(t, saramaCfg)
	return ap, newProducer(ap, testKafkaConfig(), zap.NewNop())
}

func TestPublisherEncodesObservationKeyedBySerial(t *testing.T) {
	ap, producer := newMockProducer(t)

	var gotKey, gotValue []byte
	ap.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		var err error
		if gotKey, err = msg.Key.Encode(); err != nil {
			return err
		}
		gotValue, err = msg.Value.Encode()
		if msg.Topic != "youtube.channel.statistics" {
			return errors.New("wrong topic " + msg.Topic)
		}
		return err
	})

	pub := NewPublisher(producer, "youtube.channel.statistics", zap.NewNop())
	err := pub.Publish(context.Background(), "tick-7", "UCabc", store.Sample{Key: 3, Subs: 50, Views: 1000, Videos: 7})
	require.NoError(t, err)
	require.NoError(t, producer.Close())

	assert.Equal(t, "UCabc", string(gotKey))
	var decoded map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(gotValue, &decoded))
	assert.Equal(t, "channel_statistics", decoded["type"])
	assert.Equal(t, "tick-7", decoded["tick_id"])
	assert.EqualValues(t, 3, decoded["key"])
	assert.EqualValues(t, 50, decoded["subs"])
	assert.EqualValues(t, 1000, decoded["views"])
	assert.EqualValues(t, 7, decoded["videos"])
}

func TestPublisherDeliveryFailureIsNotReturned(t *testing.T) {
	ap, producer := newMockProducer(t)
	ap.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisher(producer, "obs", zap.NewNop())
	// 投递失败在后台记录，Publish 只负责入队
	require.NoError(t, pub.Publish(context.Background(), "t", "UC1", store.Sample{Key: 1}))
	require.NoError(t, producer.Close())
}

func TestTopicDetail(t *testing.T) {
	d := topicDetail(&config.TopicAdminConfig{
		Partitions:             6,
		ReplicationFactor:      0,
		CleanupPolicy:          "compact",
		MinCleanableDirtyRatio: "0.5",
		RetentionMs:            604800000,
	})
	assert.Equal(t, int32(6), d.NumPartitions)
	assert.Equal(t, int16(-1), d.ReplicationFactor)
	assert.Equal(t, "compact", *d.ConfigEntries["cleanup.policy"])
	assert.Equal(t, "0.5", *d.ConfigEntries["min.cleanable.dirty.ratio"])
	assert.Equal(t, "604800000", *d.ConfigEntries["retention.ms"])

	d = topicDetail(&config.TopicAdminConfig{Partitions: 0, ReplicationFactor: 3, CleanupPolicy: "delete", MinCleanableDirtyRatio: "0.5"})
	assert.Equal(t, int32(-1), d.NumPartitions)
	assert.Equal(t, int16(3), d.ReplicationFactor)
	assert.NotContains(t, d.ConfigEntries, "min.cleanable.dirty.ratio")
	assert.NotContains(t, d.ConfigEntries, "retention.ms")
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := testKafkaConfig()
	cfg.Acks = "1"
	cfg.Compression = "zstd"
	cfg.Producer.EnableIdempotence = false

	sc := newSaramaConfig(cfg)
	assert.Equal(t, "youtube-stats-sampler", sc.ClientID)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionZSTD, sc.Producer.Compression)
	assert.True(t, sc.Producer.Return.Successes)

	cfg.Producer.EnableIdempotence = true
	sc = newSaramaConfig(cfg)
	assert.True(t, sc.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.Equal(t, 1, sc.Net.MaxOpenRequests)
}

func TestParseAcksAndCompression(t *testing.T) {
	assert.Equal(t, sarama.WaitForAll, parseAcks("all"))
	assert.Equal(t, sarama.NoResponse, parseAcks("0"))
	assert.Equal(t, sarama.WaitForAll, parseAcks("bogus"))
	assert.Equal(t, sarama.CompressionGZIP, parseCompression("gzip"))
	assert.Equal(t, sarama.CompressionNone, parseCompression(""))
}

func TestNewSaramaConfigIgnoresCase(t *testing.T) {
	cfg := testKafkaConfig()
	cfg.Acks = "ALL"
	cfg.Compression = "GZIP"
	cfg.Producer.EnableIdempotence = false

	sc := newSaramaConfig(cfg)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionGZIP, sc.Producer.Compression)
	assert.Equal(t, sarama.CompressionLZ4, parseCompression("Lz4"))
}
