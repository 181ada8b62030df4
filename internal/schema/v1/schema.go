package v1

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// TypeChannelStatistics 频道统计观测的事件类型
const TypeChannelStatistics = "channel_statistics"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ObservationSchema 稳定 JSON Schema v1
// 每条成功写入的统计样本对应一条观测，发布到 Kafka 供下游消费
type ObservationSchema struct {
	SchemaVersion int    `json:"schema_version"`
	Type          string `json:"type"`
	Timestamp     string `json:"ts"`
	TraceID       string `json:"trace_id,omitempty"` // 追踪 ID
	TickID        string `json:"tick_id,omitempty"`  // 产生该样本的 tick
	Serial        string `json:"serial"`
	Key           int32  `json:"key"`
	Subs          uint64 `json:"subs"`
	Views         uint64 `json:"views"`
	Videos        uint64 `json:"videos"`
}

// NewObservationSchema 创建新的观测 Schema
func NewObservationSchema(tickID, serial string, key int32) *ObservationSchema {
	return &ObservationSchema{
		SchemaVersion: 1,
		Type:          TypeChannelStatistics,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:       generateTraceID(),
		TickID:        tickID,
		Serial:        serial,
		Key:           key,
	}
}

// traceIDPool 复用字节数组
var traceIDPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 16)
	},
}

// generateTraceID 生成 trace ID（16 字节，32 字符 hex）
func generateTraceID() string {
	b := traceIDPool.Get().([]byte)
	defer traceIDPool.Put(b)

	rand.Read(b)
	return hex.EncodeToString(b)
}

// ToJSON 转换为 JSON 字节
func (o *ObservationSchema) ToJSON() ([]byte, error) {
	return json.Marshal(o)
}

// SetTimestamp 设置观测时间
func (o *ObservationSchema) SetTimestamp(t time.Time) {
	if !t.IsZero() {
		o.Timestamp = t.UTC().Format(time.RFC3339Nano)
	}
}
