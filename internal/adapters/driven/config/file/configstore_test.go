package file

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[dispatcher]
workers = 8
task_timeout = "45s"

[crawl]
enabled = true
requests_per_second = 2
default_interval = 600

[[crawl.feeds]]
url = "https://example.org/feed.xml"
name = "Example"
interval = "15m"

[[crawl.feeds]]
url = "https://example.org/other.xml"
enabled = false

[search]
url = "http://localhost:9200"
`

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0600))
}

func TestNewConfigStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_MissingFileIsEmpty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("dispatcher.workers")
	assert.False(t, ok)
}

func TestNewConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "not [valid toml")

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, sampleConfig)

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, store.GetInt("dispatcher.workers"))
	assert.Equal(t, 45*time.Second, store.GetDuration("dispatcher.task_timeout"))
	assert.True(t, store.GetBool("crawl.enabled"))
	assert.Equal(t, 2.0, store.GetFloat("crawl.requests_per_second"))
	assert.Equal(t, 10*time.Minute, store.GetDuration("crawl.default_interval"))
	assert.Equal(t, "http://localhost:9200", store.GetString("search.url"))
}

func TestConfigStore_GetTables(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, sampleConfig)

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	feeds := store.GetTables("crawl.feeds")
	require.Len(t, feeds, 2)
	assert.Equal(t, "https://example.org/feed.xml", feeds[0]["url"])
	assert.Equal(t, "15m", feeds[0]["interval"])
	assert.Equal(t, false, feeds[1]["enabled"])

	assert.Nil(t, store.GetTables("search.url"))
}

func TestConfigStore_WrongTypesReturnZero(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, sampleConfig)

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "", store.GetString("dispatcher.workers"))
	assert.Equal(t, 0, store.GetInt("search.url"))
	assert.False(t, store.GetBool("search.url"))
	assert.Zero(t, store.GetDuration("search.url"))
	assert.Zero(t, store.GetFloat("search.url"))
	assert.Nil(t, store.GetStringSlice("dispatcher.workers"))
}

func TestConfigStore_SetPersistsNested(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.index", "records"))
	require.NoError(t, store.Set("store.cursor_backend", "redis"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[search]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "records", reloaded.GetString("search.index"))
	assert.Equal(t, "redis", reloaded.GetString("store.cursor_backend"))
}

func TestConfigStore_LoadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[search]\nurl = \"http://a:9200\"\n")
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	writeConfig(t, dir, "[search]\nurl = \"http://b:9200\"\n")
	require.NoError(t, store.Load())

	assert.Equal(t, "http://b:9200", store.GetString("search.url"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permissions not enforced on windows")
	}
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFlattenMap(t *testing.T) {
	flat := flattenMap(map[string]any{
		"a": map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"e": true,
	}, "")

	assert.Equal(t, map[string]any{"a.b": int64(1), "a.c.d": "x", "e": true}, flat)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"e": true,
	}, unflattenMap(flat))
}
