package logger

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap/zapcore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sender 发送日志消息，由 kafka.Producer 实现
type Sender interface {
	SendMessage(ctx context.Context, topic string, key string, value []byte) error
}

// sendTimeout 入队等待上限，Producer 缓冲满时丢弃日志而不是阻塞调用方
const sendTimeout = 100 * time.Millisecond

// KafkaCore 将日志发送到 Kafka 的 Core
type KafkaCore struct {
	encoder zapcore.Encoder
	sender  Sender
	topic   string
	enabler zapcore.LevelEnabler
}

// NewKafkaCore 创建新的 KafkaCore
func NewKafkaCore(encoder zapcore.Encoder, sender Sender, topic string, enabler zapcore.LevelEnabler) *KafkaCore {
	return &KafkaCore{
		encoder: encoder,
		sender:  sender,
		topic:   topic,
		enabler: enabler,
	}
}

// Enabled 检查是否启用
func (kc *KafkaCore) Enabled(level zapcore.Level) bool {
	return kc.enabler.Enabled(level)
}

// With 添加字段
func (kc *KafkaCore) With(fields []zapcore.Field) zapcore.Core {
	clone := kc.clone()
	clone.encoder = clone.encoder.Clone()
	for _, field := range fields {
		field.AddTo(clone.encoder)
	}
	return clone
}

// Check 检查并添加字段
func (kc *KafkaCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if kc.Enabled(entry.Level) {
		return checked.AddCore(entry, kc)
	}
	return checked
}

// Write 写入日志到 Kafka
func (kc *KafkaCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := kc.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	logMsg := map[string]interface{}{
		"timestamp": entry.Time.Format(time.RFC3339),
		"level":     entry.Level.String(),
		"logger":    entry.LoggerName,
		"message":   entry.Message,
		"caller":    entry.Caller.String(),
	}

	var logFields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logFields); err == nil {
		for k, v := range logFields {
			if k != "ts" && k != "level" && k != "msg" && k != "logger" && k != "caller" {
				logMsg[k] = v
			}
		}
	}

	jsonData, err := json.Marshal(logMsg)
	if err != nil {
		return err
	}

	key := entry.Time.Format("20060102150405") + "-" + entry.LoggerName

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	// 发送失败无法再记录日志（避免循环），直接丢弃
	_ = kc.sender.SendMessage(ctx, kc.topic, key, jsonData)

	return nil
}

// Sync 同步
func (kc *KafkaCore) Sync() error {
	return nil
}

// clone 克隆
func (kc *KafkaCore) clone() *KafkaCore {
	return &KafkaCore{
		encoder: kc.encoder,
		sender:  kc.sender,
		topic:   kc.topic,
		enabler: kc.enabler,
	}
}
