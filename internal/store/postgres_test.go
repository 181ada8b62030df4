package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"go.uber.org/zap"
)

// 集成测试需要可用的 PostgreSQL，未设置 DATABASE_URL 时跳过
// 单连接 + 临时表，测试结束随连接释放
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	cfg := &config.StoreConfig{
		Driver:         "postgres",
		DSN:            dsn,
		MaxConns:       1,
		ChannelsTable:  "sampler_test_channels",
		MetricsTable:   "sampler_test_metrics",
		RecencyHorizon: 10 * time.Minute,
	}
	p, err := NewPostgres(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	for _, stmt := range []string{
		`CREATE TEMP TABLE sampler_test_channels (id INTEGER PRIMARY KEY, serial TEXT UNIQUE NOT NULL)`,
		`CREATE TEMP TABLE sampler_test_metrics (
			channel_id INTEGER NOT NULL,
			subs BIGINT NOT NULL,
			views BIGINT NOT NULL,
			videos BIGINT NOT NULL,
			time TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	} {
		_, err = p.pool.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
	return p
}

func addPgChannel(t *testing.T, p *Postgres, id int32, serial string) {
	t.Helper()
	_, err := p.pool.Exec(context.Background(),
		`INSERT INTO sampler_test_channels (id, serial) VALUES ($1, $2)`, id, serial)
	require.NoError(t, err)
}

func addPgSampleAgo(t *testing.T, p *Postgres, id int32, subs int64, age time.Duration) {
	t.Helper()
	_, err := p.pool.Exec(context.Background(),
		`INSERT INTO sampler_test_metrics (channel_id, subs, views, videos, time)
		 VALUES ($1, $2, 0, 0, now() - make_interval(secs => $3))`,
		id, subs, age.Seconds())
	require.NoError(t, err)
}

func TestPostgresRecentChanges(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	addPgChannel(t, p, 1, "A")
	addPgChannel(t, p, 2, "B")
	addPgChannel(t, p, 3, "C")
	addPgChannel(t, p, 4, "D")

	addPgSampleAgo(t, p, 1, 100, time.Hour)
	require.NoError(t, p.RecordSample(ctx, Sample{Key: 1, Subs: 150}))

	// B 没有早于 horizon 的样本
	require.NoError(t, p.RecordSample(ctx, Sample{Key: 2, Subs: 10}))

	addPgSampleAgo(t, p, 3, 100, 3*time.Hour)
	addPgSampleAgo(t, p, 3, 200, 2*time.Hour)

	addPgSampleAgo(t, p, 4, 500, time.Hour)
	require.NoError(t, p.RecordSample(ctx, Sample{Key: 4, Subs: 493}))

	rows, err := p.RecentChanges(ctx)
	require.NoError(t, err)

	assert.Equal(t, []RecentChange{
		{Key: 1, Serial: "A", Diff: 50},
		{Key: 3, Serial: "C", Diff: 0},
		{Key: 4, Serial: "D", Diff: -7},
	}, rows)
}

func TestPostgresRecentChangesUsesLatestBaseline(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	addPgChannel(t, p, 1, "A")
	addPgSampleAgo(t, p, 1, 10, 5*time.Hour)
	addPgSampleAgo(t, p, 1, 90, time.Hour)
	require.NoError(t, p.RecordSample(ctx, Sample{Key: 1, Subs: 100}))

	rows, err := p.RecentChanges(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].Diff)
}

func TestPostgresRecordSample(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	addPgChannel(t, p, 7, "X")

	require.NoError(t, p.RecordSample(ctx, Sample{Key: 7, Subs: 1, Views: 2, Videos: 3}))

	var subs, views, videos int64
	require.NoError(t, p.pool.QueryRow(ctx,
		`SELECT subs, views, videos FROM sampler_test_metrics WHERE channel_id = 7`).
		Scan(&subs, &views, &videos))
	assert.Equal(t, []int64{1, 2, 3}, []int64{subs, views, videos})
}

func TestPostgresRecordSampleRowCount(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	// BEFORE 触发器返回 NULL，插入被静默丢弃
	for _, stmt := range []string{
		`CREATE FUNCTION pg_temp.sampler_drop_insert() RETURNS trigger AS $$ BEGIN RETURN NULL; END $$ LANGUAGE plpgsql`,
		`CREATE TRIGGER sampler_drop_insert BEFORE INSERT ON sampler_test_metrics
		 FOR EACH ROW EXECUTE PROCEDURE pg_temp.sampler_drop_insert()`,
	} {
		_, err := p.pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	err := p.RecordSample(ctx, Sample{Key: 1, Subs: 1})
	assert.ErrorIs(t, err, ErrRowCount)
}
