package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/changelog"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const testFeedURL = "https://radio.example.org/feed.xml"

// setupTestStore creates a SQLite store in a temporary directory with a
// test clock.
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	opts = append([]Option{WithClock(testclock.NewClock(t0))}, opts...)
	store, err := NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testPost(itemID, headline string) domain.Record {
	return domain.NewPostRecord(
		domain.NewGUID(domain.NamespacePost, domain.PostKey(testFeedURL, itemID)),
		domain.Post{Headline: headline, URL: "https://radio.example.org/" + itemID},
		domain.Provenance{Source: domain.SourceCrawler, FetchedAt: t0},
	)
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	// Test with invalid path (should fail to create directory)
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "ingest.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "to", "db")

	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_DefaultDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewStore("")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(home, ".sercha-ingest", "data", "ingest.db"), store.Path())
}

func TestStore_QueryTimeout(t *testing.T) {
	store := setupTestStore(t, WithQueryTimeout(250*time.Millisecond))

	var busy int
	require.NoError(t, store.db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 250, busy)

	ctx, cancel := store.bound(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(250*time.Millisecond), deadline, 200*time.Millisecond)

	_, err := store.RecordStore().Get(context.Background(), testPost("1", "A").GUID)
	assert.NoError(t, err)

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	_, err = store.TaskStore().Stats(expired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_NoQueryTimeout(t *testing.T) {
	store := setupTestStore(t)

	var busy int
	require.NoError(t, store.db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)

	ctx, cancel := store.bound(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
}

func TestMigrations_TablesExist(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{
		"schema_migrations", "records", "record_siblings", "changes", "tasks",
		"change_cursors", "feed_sources", "crawl_schedules", "crawl_results",
	} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	tempDir := t.TempDir()

	store1, err := NewStore(tempDir)
	require.NoError(t, err)
	var version1 int
	require.NoError(t, store1.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version1))
	require.NoError(t, store1.Close())

	store2, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store2.Close()

	var version2, count int
	require.NoError(t, store2.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version2))
	require.NoError(t, store2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, version1)
	assert.Equal(t, version1, version2)
	assert.Equal(t, 2, count)
}

func TestStore_DataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	rec := testPost("1", "A")
	rec.Revision = 1
	_, err = store.RecordStore().Put(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.CursorStore().Save(ctx, domain.ChangeCursor{Name: "pipeline", Sequence: 1}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.RecordStore().Get(ctx, rec.GUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.Post.Headline)

	cur, err := reopened.CursorStore().Load(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cur.Sequence)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestSQLLimit(t *testing.T) {
	assert.Equal(t, -1, sqlLimit(0))
	assert.Equal(t, 10, sqlLimit(10))
}

func TestDefaultSubscribeOptions(t *testing.T) {
	store := setupTestStore(t, WithSubscribeOptions(changelog.Options{BatchSize: 7}))
	assert.Equal(t, 7, store.subscribeOpts.BatchSize)
}
