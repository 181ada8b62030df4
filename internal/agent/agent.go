// Package agent 驱动采样循环：构建采样表、按权重分批查询上游、对账并写入样本
//
// 每个 tick 分两个状态：
//   - building: 查询最近变化，构建并归一化采样表
//   - sampling: 顺序执行 T 个批次，每批一次上游请求
//
// 所有步骤在单个 goroutine 中顺序执行，采样表和映射不需要加锁。
package agent

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"github.com/yourorg/youtube-stats-sampler/internal/sampling"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
	"github.com/yourorg/youtube-stats-sampler/internal/youtube"
	"go.uber.org/zap"
)

const (
	StateIdle     = "idle"
	StateBuilding = "building"
	StateSampling = "sampling"
)

// Store 采样循环使用的存储操作
type Store interface {
	RecentChanges(ctx context.Context) ([]store.RecentChange, error)
	RecordSample(ctx context.Context, s store.Sample) error
}

// Upstream 上游统计查询
type Upstream interface {
	ChannelStatistics(ctx context.Context, ids []string) (*youtube.ChannelListResponse, error)
}

// Publisher 观测发布（可选）
type Publisher interface {
	Publish(ctx context.Context, tickID, serial string, sample store.Sample) error
}

// Status 运行状态，供健康检查读取
type Status struct {
	State        string
	Ticks        uint64
	TablesBuilt  uint64
	TableSize    int
	LastTickEnd  time.Time
	ItemsWritten uint64
}

// Agent 采样循环
type Agent struct {
	store     Store
	upstream  Upstream
	publisher Publisher
	config    *config.SamplerConfig
	logger    *zap.Logger
	clock     clockwork.Clock
	rand      *rand.Rand
	records   io.Writer

	publishTimeout time.Duration

	mu     sync.RWMutex
	status Status
}

// Option 可选配置
type Option func(*Agent)

// WithPublisher 成功写入后发布观测
func WithPublisher(p Publisher) Option {
	return func(a *Agent) { a.publisher = p }
}

// WithPublishTimeout 设置单条观测发布的等待上限
func WithPublishTimeout(d time.Duration) Option {
	return func(a *Agent) { a.publishTimeout = d }
}

// WithClock 替换时钟
func WithClock(c clockwork.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithRand 替换随机源
func WithRand(r *rand.Rand) Option {
	return func(a *Agent) { a.rand = r }
}

// WithRecordWriter 替换样本记录输出（默认 stdout）
func WithRecordWriter(w io.Writer) Option {
	return func(a *Agent) { a.records = w }
}

// New 创建新的 Agent
func New(st Store, up Upstream, cfg *config.SamplerConfig, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		store:    st,
		upstream: up,
		config:   cfg,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		records:  os.Stdout,
		status:   Status{State: StateIdle},

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rand == nil {
		a.rand = sampling.NewRand(cfg.Seed)
	}
	return a
}

// Run 循环执行 tick，直到 ctx 取消
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("采样循环已启动",
		zap.Int("批次大小", a.config.BatchSize),
		zap.Int("每 tick 批次数", a.config.BatchesPerTick),
		zap.Bool("批内去重", a.config.DedupeBatch))

	for {
		if ctx.Err() != nil {
			a.logger.Info("采样循环已停止")
			return nil
		}

		err := a.RunTick(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.logger.Info("采样循环已停止")
			return nil
		}

		// 构建失败或空表：立即重新开始，可选暂停避免空目录空转
		if a.config.EmptyTickPause > 0 {
			select {
			case <-a.clock.After(a.config.EmptyTickPause):
			case <-ctx.Done():
			}
		}
	}
}

// RunTick 执行单个 tick：构建采样表，然后顺序执行 T 个批次
func (a *Agent) RunTick(ctx context.Context) error {
	tickID := uuid.NewString()
	start := a.clock.Now()
	log := a.logger.With(zap.String("tick_id", tickID))

	a.setState(StateBuilding)
	table, index, err := a.build(ctx, log)
	if err != nil {
		a.finishTick()
		return err
	}

	a.setState(StateSampling)
	for i := 0; i < a.config.BatchesPerTick; i++ {
		if err := ctx.Err(); err != nil {
			log.Info("收到停止信号，中止当前 tick", zap.Int("已完成批次", i))
			a.finishTick()
			return err
		}
		a.runBatch(ctx, tickID, table, index, log)
	}

	metrics.TicksTotal.WithLabelValues("ok").Inc()
	metrics.TickDurationSeconds.Observe(a.clock.Since(start).Seconds())
	a.finishTick()
	log.Info("tick 完成",
		zap.Int("批次数", a.config.BatchesPerTick),
		zap.Duration("耗时", a.clock.Since(start)))
	return nil
}

// build 查询最近变化并构建采样表和抽样器
func (a *Agent) build(ctx context.Context, log *zap.Logger) (*sampling.Table, *sampling.WeightedIndex, error) {
	rows, err := a.store.RecentChanges(context.WithoutCancel(ctx))
	if err != nil {
		metrics.TicksTotal.WithLabelValues("store_error").Inc()
		log.Error("查询最近变化失败", zap.Error(err))
		return nil, nil, err
	}

	table := sampling.Build(rows)
	log.Info("已获取频道", zap.Int("频道数", table.Len()))
	if table.Len() == 0 {
		metrics.TicksTotal.WithLabelValues("empty").Inc()
		log.Warn("采样表为空，重新开始 tick")
		return nil, nil, sampling.ErrEmptyTable
	}

	if table.Normalize() {
		metrics.WeightShiftTotal.Inc()
		log.Info("最小权重为 0，所有权重加 1")
	}

	index, err := sampling.NewWeightedIndex(table.Weights(), a.rand)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("sampler_error").Inc()
		log.Error("构建加权抽样器失败", zap.Error(err))
		return nil, nil, err
	}

	metrics.TableSize.Set(float64(table.Len()))
	metrics.TableTotalWeight.Set(float64(index.Total()))

	a.mu.Lock()
	a.status.TablesBuilt++
	a.status.TableSize = table.Len()
	a.mu.Unlock()

	return table, index, nil
}

func (a *Agent) setState(state string) {
	metrics.SetTickState(state)
	a.mu.Lock()
	a.status.State = state
	a.mu.Unlock()
}

func (a *Agent) finishTick() {
	a.mu.Lock()
	a.status.Ticks++
	a.status.LastTickEnd = a.clock.Now()
	a.mu.Unlock()
}

// Status 返回当前运行状态快照
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Agent) addWritten() {
	a.mu.Lock()
	a.status.ItemsWritten++
	a.mu.Unlock()
}
