package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscout/scraper/db"
	"github.com/scholarscout/scraper/models"
	"github.com/scholarscout/scraper/scheduler"
	"github.com/scholarscout/scraper/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), Config{
		DB:     db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "app.db")},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func seed(t *testing.T, a *App, urls ...string) {
	t.Helper()
	for _, u := range urls {
		_, err := a.DB.CreateRecord(context.Background(), &models.Record{
			Title:     "Scholarship at " + u,
			SourceURL: u,
			Platform:  models.PlatformGeneral,
		})
		require.NoError(t, err)
	}
}

func TestNewWithoutAIKey(t *testing.T) {
	a := newTestApp(t)
	assert.Nil(t, a.Archive)
	assert.NotNil(t, a.Classifier)
	assert.Len(t, a.Tasks(), 2)
}

func TestTasksIntervals(t *testing.T) {
	intervals := map[string]time.Duration{}
	for _, task := range newTestApp(t).Tasks() {
		intervals[task.Name] = task.Interval
	}
	assert.Equal(t, map[string]time.Duration{
		"rss-ingest": scheduler.RSSInterval,
		"enrichment": scheduler.EnrichmentInterval,
	}, intervals)
}

func TestNewUnknownSnapshotBackend(t *testing.T) {
	_, err := New(context.Background(), Config{
		DB:        db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "app.db")},
		Snapshots: SnapshotConfig{Backend: "ftp"},
	})
	assert.Error(t, err)
}

func TestNewFilesystemArchive(t *testing.T) {
	a, err := New(context.Background(), Config{
		DB:        db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "app.db")},
		Snapshots: SnapshotConfig{Backend: SnapshotFS, BasePath: t.TempDir()},
	})
	require.NoError(t, err)
	defer a.Close()
	_, ok := a.Archive.(*storage.Storage)
	assert.True(t, ok)
}

func TestFilterStatsAndCleanup(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	seed(t, a,
		"https://bold.org/scholarships/stem",
		"https://medium.com/@someone/top-10-scholarships",
		"https://example.org/blog/how-to-win",
	)

	stats, err := a.FilterStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 2, stats.Blocked)
	assert.Equal(t, 1, stats.ByRule[models.RuleArticleDomain])
	assert.Equal(t, 1, stats.ByRule[models.RuleArticlePath])

	report, err := a.Cleanup(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Blocked, 2)
	assert.Zero(t, report.Deleted)

	count, err := a.DB.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	report, err = a.Cleanup(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Deleted)

	count, err = a.DB.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateStats(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "https://bold.org/scholarships/a", "https://bold.org/scholarships/b")
	require.NoError(t, a.UpdateStats(context.Background()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("RSS_FEEDS", "https://a.org/feed, ,https://b.org/rss")
	t.Setenv("VALIDATION_FAIL_OPEN", "true")
	t.Setenv("ENRICH_LIMIT", "9")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.DB.DSN)
	assert.Equal(t, []string{"https://a.org/feed", "https://b.org/rss"}, cfg.FeedURLs)
	assert.True(t, cfg.FailOpen)
	assert.Equal(t, 9, cfg.EnrichLimit)
	assert.Empty(t, cfg.LLM.APIKey)

	t.Setenv("DB_HOST", "pg.internal")
	cfg = ConfigFromEnv()
	assert.Equal(t, db.DriverPostgres, cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "host=pg.internal")
}

func TestFeedsFromURLs(t *testing.T) {
	feeds := feedsFromURLs([]string{"https://a.org/feed"}, []string{"grant"})
	require.Len(t, feeds, 1)
	assert.Equal(t, "https://a.org/feed", feeds[0].URL)
	assert.Equal(t, []string{"grant"}, feeds[0].Keywords)
}
