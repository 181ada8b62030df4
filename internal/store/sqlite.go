package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"go.uber.org/zap"
)

// SQLite 基于 database/sql + go-sqlite3 的指标存储（本地运行与测试）
type SQLite struct {
	db        *sql.DB
	config    *config.StoreConfig
	logger    *zap.Logger
	recentSQL string
	insertSQL string
}

// NewSQLite 打开 SQLite 数据库
// 单连接：":memory:" 在每个连接上都是独立的数据库，且 SQLite 只允许单写者
func NewSQLite(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	logger.Info("SQLite 指标存储已打开", zap.String("dsn", cfg.DSN))

	return &SQLite{
		db:        db,
		config:    cfg,
		logger:    logger,
		recentSQL: sqliteRecentSQL(cfg.ChannelsTable, cfg.MetricsTable),
		insertSQL: fmt.Sprintf(`INSERT INTO %s (channel_id, subs, views, videos) VALUES (?, ?, ?, ?)`, cfg.MetricsTable),
	}, nil
}

// sqliteRecentSQL 与 PostgreSQL 版本语义一致，用窗口函数代替 DISTINCT ON
// 同一秒内的样本按 rowid 区分先后
func sqliteRecentSQL(channels, metricsTable string) string {
	return fmt.Sprintf(`
WITH baseline AS (
	SELECT channel_id, subs,
		ROW_NUMBER() OVER (PARTITION BY channel_id ORDER BY time DESC, rowid DESC) AS rn
	FROM %[2]s
	WHERE time < datetime('now', ?)
), newest AS (
	SELECT channel_id, subs,
		ROW_NUMBER() OVER (PARTITION BY channel_id ORDER BY time DESC, rowid DESC) AS rn
	FROM %[2]s
)
SELECT c.id, c.serial, (n.subs - b.subs) AS diff
FROM baseline b
JOIN newest n ON n.channel_id = b.channel_id AND n.rn = 1
JOIN %[1]s c ON c.id = b.channel_id
WHERE b.rn = 1
ORDER BY diff DESC, c.id ASC`, channels, metricsTable)
}

// RecentChanges 读取最近变化
func (s *SQLite) RecentChanges(ctx context.Context) ([]RecentChange, error) {
	rows, err := s.db.QueryContext(ctx, s.recentSQL, sqliteModifier(s.config.RecencyHorizon))
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
func (s *SQLite) RecordSample(ctx context.Context, sample Sample) error {
	start := time.Now()
	defer func() {
		metrics.StoreWriteLatencyMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := s.db.ExecContext(ctx, s.insertSQL, sample.Key, int64(sample.Subs), int64(sample.Views), int64(sample.Videos))
	if err != nil {
		return fmt.Errorf("insert sample for key %d: %w", sample.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for key %d: %w", sample.Key, err)
	}
	return checkRowCount(n)
}

// Close 关闭数据库
func (s *SQLite) Close() error {
	s.logger.Info("SQLite 指标存储已关闭")
	return s.db.Close()
}
