// Package store 提供指标存储适配器
// 读取最近变化聚合，追加新的指标样本；支持 PostgreSQL (pgx) 与 SQLite 两种驱动
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"go.uber.org/zap"
)

// ErrRowCount 插入影响的行数不为 1
var ErrRowCount = errors.New("insert did not affect exactly one row")

// RecentChange 最近变化行
// Diff = 最新样本 subs - 基线样本 subs（基线为早于 recency horizon 的最近一条样本）
type RecentChange struct {
	Key    int32
	Serial string
	Diff   int64
}

// Sample 指标样本，时间由服务端在插入时分配
type Sample struct {
	Key    int32
	Subs   uint64
	Views  uint64
	Videos uint64
}

// Store 指标存储接口
type Store interface {
	// RecentChanges 返回每个频道的最近变化，按 diff 降序
	RecentChanges(ctx context.Context) ([]RecentChange, error)

	// RecordSample 追加一条样本，必须恰好插入一行
	RecordSample(ctx context.Context, s Sample) error

	// Close 释放连接
	Close() error
}

// Open 按配置的驱动打开存储
func Open(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg, logger)
	case "sqlite":
		return NewSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// checkRowCount 校验插入影响行数
func checkRowCount(n int64) error {
	if n != 1 {
		return fmt.Errorf("%w: affected %d rows", ErrRowCount, n)
	}
	return nil
}

// horizonSeconds 将 recency horizon 转换为整秒（至少 1 秒）
func horizonSeconds(h time.Duration) int64 {
	secs := int64(h / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// sqliteModifier 生成 SQLite datetime() 修饰符，例如 "-600 seconds"
func sqliteModifier(h time.Duration) string {
	return "-" + strconv.FormatInt(horizonSeconds(h), 10) + " seconds"
}
