package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"github.com/yourorg/youtube-stats-sampler/internal/sampling"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
	"github.com/yourorg/youtube-stats-sampler/internal/youtube"
	"go.uber.org/zap"
)

// defaultPublishTimeout Producer 输入缓冲满时最多阻塞采样循环这么久
const defaultPublishTimeout = 5 * time.Second

var (
	// ErrUnknownSerial 上游返回的 serial 不在本 tick 的映射中
	ErrUnknownSerial = errors.New("serial not in sampling table")
	// ErrBadCount 统计计数不是合法的非负十进制整数
	ErrBadCount = errors.New("invalid statistics count")
)

// runBatch 抽取一批 serial，请求上游并逐条对账
// 批次级错误只影响本批次
func (a *Agent) runBatch(ctx context.Context, tickID string, table *sampling.Table, index *sampling.WeightedIndex, log *zap.Logger) {
	serials := sampling.DrawBatch(index, table, a.config.BatchSize, a.config.DedupeBatch)
	metrics.BatchIdentifiers.Observe(float64(len(serials)))

	// 进行中的请求不随 ctx 取消，由 upstream.timeout 约束
	resp, err := a.upstream.ChannelStatistics(context.WithoutCancel(ctx), serials)
	if err != nil {
		result := classifyBatchError(err)
		metrics.BatchesTotal.WithLabelValues(result).Inc()
		log.Warn("批次请求失败，跳过本批次",
			zap.String("错误类型", result),
			zap.Int("标识数", len(serials)),
			zap.Error(err))
		return
	}
	metrics.BatchesTotal.WithLabelValues("ok").Inc()

	for _, item := range resp.Items {
		if err := a.reconcile(ctx, tickID, table, item, log); err != nil {
			result := classifyItemError(err)
			metrics.ItemsTotal.WithLabelValues(result).Inc()
			log.Warn("跳过条目",
				zap.String("serial", item.ID),
				zap.String("错误类型", result),
				zap.Error(err))
			continue
		}
		metrics.ItemsTotal.WithLabelValues("written").Inc()
		a.addWritten()
	}
}

// reconcile 将单个返回条目映射回 key，输出记录行并写入存储
// 写入成功后发布观测；发布失败只记录日志
func (a *Agent) reconcile(ctx context.Context, tickID string, table *sampling.Table, item youtube.Item, log *zap.Logger) error {
	key, ok := table.Lookup(item.ID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSerial, item.ID)
	}

	sample, err := parseSample(key, item.Statistics)
	if err != nil {
		return fmt.Errorf("serial %q: %w", item.ID, err)
	}

	if a.config.PrintRecords {
		fmt.Fprintf(a.records, "%s %d %d %d %d\n", item.ID, sample.Key, sample.Subs, sample.Views, sample.Videos)
	}

	if err := a.store.RecordSample(context.WithoutCancel(ctx), sample); err != nil {
		return fmt.Errorf("record sample %q: %w", item.ID, err)
	}

	if a.publisher != nil {
		a.publish(ctx, tickID, item.ID, sample, log)
	}
	return nil
}

// publish 发布观测，等待不超过 publishTimeout
func (a *Agent) publish(ctx context.Context, tickID, serial string, sample store.Sample, log *zap.Logger) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.publishTimeout)
	defer cancel()
	if err := a.publisher.Publish(pubCtx, tickID, serial, sample); err != nil {
		log.Warn("发布观测失败", zap.String("serial", serial), zap.Error(err))
	}
}

// parseSample 解析三个计数；空串和超出 int64 的值都视为非法
func parseSample(key int32, stats youtube.Statistics) (store.Sample, error) {
	subs, err := parseCount("subscriberCount", stats.SubscriberCount)
	if err != nil {
		return store.Sample{}, err
	}
	views, err := parseCount("viewCount", stats.ViewCount)
	if err != nil {
		return store.Sample{}, err
	}
	videos, err := parseCount("videoCount", stats.VideoCount)
	if err != nil {
		return store.Sample{}, err
	}
	return store.Sample{Key: key, Subs: subs, Views: views, Videos: videos}, nil
}

func parseCount(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadCount, field, s)
	}
	// 存储列为 bigint
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s=%q exceeds bigint", ErrBadCount, field, s)
	}
	return v, nil
}

func classifyBatchError(err error) string {
	switch {
	case errors.Is(err, youtube.ErrStatus):
		return "status"
	case errors.Is(err, youtube.ErrDecode):
		return "decode"
	default:
		return "transport"
	}
}

func classifyItemError(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSerial):
		return "unknown_serial"
	case errors.Is(err, ErrBadCount):
		return "bad_count"
	case errors.Is(err, store.ErrRowCount):
		return "row_count"
	default:
		return "store_error"
	}
}
