package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type captureSender struct {
	mu     sync.Mutex
	topics []string
	values [][]byte
}

func (c *captureSender) SendMessage(ctx context.Context, topic string, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.values = append(c.values, value)
	return nil
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cfg := &config.LoggerConfig{
		Level:  "info",
		Format: "json",
		Output: []string{"file"},
		File:   config.FileLogConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
	}
	require.NoError(t, Init(cfg, nil))

	GetLogger().Info("采样表已构建", zap.Int("条目数", 3))
	GetLogger().Debug("不应出现")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "采样表已构建")
	assert.NotContains(t, string(data), "不应出现")
}

func TestInitKafkaOutputReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	sender := &captureSender{}
	cfg := &config.LoggerConfig{
		Level:  "info",
		Format: "console",
		Output: []string{"file", "kafka"},
		File:   config.FileLogConfig{Path: path},
		Kafka:  config.KafkaLogConfig{Enabled: true, Topic: "sampler.logs"},
	}
	require.NoError(t, Init(cfg, sender))

	GetLogger().With(zap.String("组件", "agent")).Warn("批次请求失败", zap.String("错误类型", "status"))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.values, 1)
	assert.Equal(t, "sampler.logs", sender.topics[0])

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(sender.values[0], &msg))
	assert.Equal(t, "warn", msg["level"])
	assert.Equal(t, "批次请求失败", msg["message"])
	assert.Equal(t, "agent", msg["组件"])
	assert.Equal(t, "status", msg["错误类型"])

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"File", "kafka"}, "file"))
	assert.False(t, contains(nil, "file"))
}
