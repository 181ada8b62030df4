package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"go.uber.org/zap"
)

// Postgres 基于 pgxpool 的指标存储
type Postgres struct {
	pool      *pgxpool.Pool
	config    *config.StoreConfig
	logger    *zap.Logger
	recentSQL string
	insertSQL string
}

// NewPostgres 创建连接池并验证连通性
func NewPostgres(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	logger.Info("PostgreSQL 指标存储已连接",
		zap.String("主机", poolCfg.ConnConfig.Host),
		zap.String("数据库", poolCfg.ConnConfig.Database),
		zap.Int32("最大连接数", poolCfg.MaxConns))

	return &Postgres{
		pool:      pool,
		config:    cfg,
		logger:    logger,
		recentSQL: postgresRecentSQL(cfg.ChannelsTable, cfg.MetricsTable),
		insertSQL: fmt.Sprintf(`INSERT INTO %s (channel_id, subs, views, videos) VALUES ($1, $2, $3, $4)`, cfg.MetricsTable),
	}, nil
}

// postgresRecentSQL 基线取早于 horizon 的最近样本，最新取全部样本中的最近一条
func postgresRecentSQL(channels, metricsTable string) string {
	return fmt.Sprintf(`
SELECT c.id, c.serial, (n.subs - b.subs) AS diff
FROM (
	SELECT DISTINCT ON (channel_id) channel_id, subs::bigint AS subs
	FROM %[2]s
	WHERE time < now() - make_interval(secs => $1)
	ORDER BY channel_id, time DESC
) b
JOIN (
	SELECT DISTINCT ON (channel_id) channel_id, subs::bigint AS subs
	FROM %[2]s
	ORDER BY channel_id, time DESC
) n ON n.channel_id = b.channel_id
JOIN %[1]s c ON c.id = b.channel_id
ORDER BY diff DESC, c.id ASC`, channels, metricsTable)
}

// RecentChanges 读取最近变化
func (p *Postgres) RecentChanges(ctx context.Context) ([]RecentChange, error) {
	rows, err := p.pool.Query(ctx, p.recentSQL, float64(horizonSeconds(p.config.RecencyHorizon)))
	if err != nil {
		return nil, fmt.Errorf("query recent changes: %w", err)
	}
	defer rows.Close()

	var out []RecentChange
	for rows.Next() {
		var rc RecentChange
		if err := rows.Scan(&rc.Key, &rc.Serial, &rc.Diff); err != nil {
			return nil, fmt.Errorf("scan recent change: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent changes: %w", err)
	}
	return out, nil
}

// RecordSample 追加一条样本
func (p *Postgres) RecordSample(ctx context.Context, s Sample) error {
	start := time.Now()
	defer func() {
		metrics.StoreWriteLatencyMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	tag, err := p.pool.Exec(ctx, p.insertSQL, s.Key, int64(s.Subs), int64(s.Views), int64(s.Videos))
	if err != nil {
		return fmt.Errorf("insert sample for key %d: %w", s.Key, err)
	}
	return checkRowCount(tag.RowsAffected())
}

// Close 关闭连接池
func (p *Postgres) Close() error {
	p.pool.Close()
	p.logger.Info("PostgreSQL 指标存储已关闭")
	return nil
}
