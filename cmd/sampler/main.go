package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/youtube-stats-sampler/internal/agent"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/health"
	"github.com/yourorg/youtube-stats-sampler/internal/kafka"
	"github.com/yourorg/youtube-stats-sampler/internal/logger"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
	"github.com/yourorg/youtube-stats-sampler/internal/youtube"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run 运行采样服务并返回进程退出码，defer 的清理在退出前完成
// 只有收到外部信号后的正常关闭返回 0
func run() int {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger 还未初始化，输出到 stderr
		fmt.Fprintf(os.Stderr, "ERROR: 加载配置文件失败: %v\n", err)
		return 1
	}

	// 验证配置（包括凭证）
	if err = config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: 配置验证失败: %v\n", err)
		return 1
	}

	// 第一步：不带 Kafka 输出初始化日志，Producer 创建后再启用
	baseLoggerCfg := cfg.Logger
	baseLoggerCfg.Output = withoutOutput(cfg.Logger.Output, "kafka")
	if err = logger.Init(&baseLoggerCfg, nil); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: 初始化 logger 失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Info("正在启动 YouTube Stats Sampler",
		zap.String("存储驱动", cfg.Store.Driver),
		zap.String("上游地址", cfg.Upstream.BaseURL),
		zap.Int("批次大小", cfg.Sampler.BatchSize),
		zap.Int("每 tick 批次数", cfg.Sampler.BatchesPerTick),
		zap.Bool("Kafka 观测流", cfg.Kafka.Enabled))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// 连接指标存储，失败直接退出
	log.Info("正在连接指标存储...", zap.String("驱动", cfg.Store.Driver))
	st, err := store.Open(ctx, &cfg.Store, log)
	if err != nil {
		log.Error("连接指标存储失败", zap.Error(err))
		return 1
	}
	defer st.Close()

	client := youtube.NewClient(&cfg.Upstream)

	// Kafka 观测流和 Kafka 日志共用一个 Producer；创建失败时继续运行
	kafkaLog := cfg.Logger.Kafka.Enabled && len(baseLoggerCfg.Output) != len(cfg.Logger.Output)
	var producer *kafka.Producer
	var opts []agent.Option
	if cfg.Kafka.Enabled && cfg.Kafka.TopicAdmin.AutoCreate {
		topicAdmin, err := kafka.NewTopicAdmin(&cfg.Kafka, log)
		if err != nil {
			log.Warn("创建 Topic 管理员失败，跳过 Topic 创建",
				zap.Strings("broker地址", cfg.Kafka.Brokers),
				zap.Error(err))
		} else {
			if err := topicAdmin.EnsureTopic(ctx, cfg.Kafka.Topic); err != nil {
				log.Warn("确保 Topic 存在失败", zap.String("主题", cfg.Kafka.Topic), zap.Error(err))
			}
			topicAdmin.Close()
		}
	}
	if cfg.Kafka.Enabled || kafkaLog {
		log.Info("正在创建 Kafka Producer...", zap.Strings("代理", cfg.Kafka.Brokers))
		producer, err = kafka.NewProducer(&cfg.Kafka, log)
		if err != nil {
			log.Error("创建 Kafka Producer 失败，观测和 Kafka 日志不会发送", zap.Error(err))
			producer = nil
		} else if cfg.Kafka.Enabled {
			opts = append(opts, agent.WithPublisher(kafka.NewPublisher(producer, cfg.Kafka.Topic, log)))
		}
	}

	// 第二步：Producer 可用时启用 Kafka 日志输出
	if producer != nil && kafkaLog {
		if err := logger.Init(&cfg.Logger, producer); err != nil {
			log.Warn("重新初始化 logger 失败，继续使用原有输出", zap.Error(err))
		} else {
			log = logger.GetLogger()
			log.Info("Logger 已重新初始化，Kafka 日志输出已启用",
				zap.String("kafka主题", cfg.Logger.Kafka.Topic))
		}
	}

	clock := clockwork.NewRealClock()
	sampler := agent.New(st, client, &cfg.Sampler, log, append(opts, agent.WithClock(clock))...)

	// 健康检查和指标服务器
	var healthServer *health.Server
	var metricsServer *http.Server
	if cfg.Monitoring.Enabled {
		healthServer = health.NewServer(cfg.Monitoring.HealthPort, func() health.Snapshot {
			s := sampler.Status()
			return health.Snapshot{
				State:        s.State,
				Ticks:        s.Ticks,
				TablesBuilt:  s.TablesBuilt,
				TableSize:    s.TableSize,
				LastTickEnd:  s.LastTickEnd,
				ItemsWritten: s.ItemsWritten,
			}
		}, clock, log)

		goSafe(&wg, log, "健康检查服务器", func() {
			if err := healthServer.Start(); err != nil {
				log.Error("健康检查服务器错误", zap.Error(err))
			}
		})

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
			Handler: metricsMux,
		}
		goSafe(&wg, log, "指标服务器", func() {
			log.Info("正在启动指标服务器", zap.Int("端口", cfg.Monitoring.MetricsPort))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("指标服务器错误", zap.Error(err))
			}
		})

		goSafe(&wg, log, "内存监控", func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					metrics.UpdateMemoryMetrics()
				}
			}
		})
	}

	// 采样循环
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		defer func() {
			if r := recover(); r != nil {
				log.Error("采样循环发生 panic",
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()
		sampler.Run(ctx)
	}()

	if healthServer != nil {
		healthServer.SetReady(true)
	}

	// 等待信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	exitCode := waitForStop(sigChan, samplerDone, log)
	signal.Stop(sigChan)

	if healthServer != nil {
		healthServer.SetShutdown(true)
	}

	// 停止采样：当前批次完成后退出，最多等待一个上游超时
	cancel()
	select {
	case <-samplerDone:
		log.Info("采样循环已停止")
	case <-time.After(cfg.Upstream.Timeout + 5*time.Second):
		log.Warn("等待采样循环停止超时")
	}

	if cfg.Monitoring.Enabled {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if healthServer != nil {
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("关闭健康检查服务器超时", zap.Error(err))
			}
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("关闭指标服务器超时", zap.Error(err))
			}
		}
	}

	waitTimeout(&wg, 10*time.Second, log)

	// 日志在 Producer 关闭之前同步，保证 Kafka 日志发送完成
	_ = logger.Sync()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Warn("关闭 Kafka Producer 失败", zap.Error(err))
		}
	}

	log.Info("优雅关闭完成，程序退出", zap.Int("退出码", exitCode))
	return exitCode
}

// waitForStop 等待关闭信号或采样循环退出，返回退出码
// 采样循环先于信号退出（panic 等）视为异常，返回 1
func waitForStop(sigChan <-chan os.Signal, samplerDone <-chan struct{}, log *zap.Logger) int {
	select {
	case sig := <-sigChan:
		log.Info("收到关闭信号，开始优雅关闭", zap.String("信号", sig.String()))
		return 0
	case <-samplerDone:
		log.Error("采样循环意外退出，开始关闭")
		return 1
	}
}

// goSafe 启动带 panic 恢复的 goroutine
func goSafe(wg *sync.WaitGroup, log *zap.Logger, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error(name+"发生 panic",
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()
		fn()
	}()
}

// waitTimeout 等待所有 goroutine 退出，超时后放弃
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration, log *zap.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("所有 goroutine 已退出")
	case <-time.After(timeout):
		log.Warn("等待 goroutine 退出超时", zap.Duration("超时时间", timeout))
	}
}

// withoutOutput 返回去掉指定输出后的列表
func withoutOutput(outputs []string, drop string) []string {
	kept := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if o != drop {
			kept = append(kept, o)
		}
	}
	return kept
}
