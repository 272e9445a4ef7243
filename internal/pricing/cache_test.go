package pricing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdpower/ccledger/internal/types"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func writeEntry(t *testing.T, path string, entry CacheEntry) {
	t.Helper()
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestCacheCustomTTL(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "pricing_cache.json")
	writeEntry(t, path, CacheEntry{Version: CacheVersion, LastUpdated: now.Add(-2 * 24 * time.Hour), Entries: Builtin()})

	_, err := NewCache(path, WithClock(fixedClock(now)), WithTTL(24*time.Hour)).Load()
	require.ErrorIs(t, err, types.ErrCacheInvalid)

	_, err = NewCache(path, WithClock(fixedClock(now)), WithTTL(0)).Load()
	require.NoError(t, err)
}

func TestCacheValidity(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		written time.Time
		version string
		valid   bool
	}{
		{"one hour old", now.Add(-time.Hour), CacheVersion, true},
		{"exactly seven days", now.Add(-DefaultCacheTTL), CacheVersion, true},
		{"eight days old", now.Add(-8 * 24 * time.Hour), CacheVersion, false},
		{"version mismatch", now.Add(-time.Hour), "v2.0.0", false},
		{"invalid version", now.Add(-time.Hour), "one", false},
		{"future timestamp", now.Add(time.Hour), CacheVersion, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pricing_cache.json")
			writeEntry(t, path, CacheEntry{Version: tt.version, LastUpdated: tt.written, Entries: Builtin()})

			cache := NewCache(path, WithClock(fixedClock(now)))
			entry, err := cache.Load()
			if tt.valid {
				require.NoError(t, err)
				assert.Len(t, entry.Entries, len(Builtin()))
				return
			}
			require.ErrorIs(t, err, types.ErrCacheInvalid)
			assert.Nil(t, entry)
		})
	}
}

func TestCacheLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := NewCache(filepath.Join(dir, "absent.json")).Load()
	require.ErrorIs(t, err, types.ErrCacheInvalid)
	require.ErrorIs(t, err, ErrNoCache)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"version": "v1.0.0", "entries": `), 0o644))
	_, err = NewCache(corrupt).Load()
	require.ErrorIs(t, err, types.ErrCacheInvalid)
	assert.NotErrorIs(t, err, ErrNoCache)
}

func TestCacheSaveRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	dir := filepath.Join(t.TempDir(), "nested", "ccledger")
	path := filepath.Join(dir, "pricing_cache.json")
	cache := NewCache(path, WithClock(fixedClock(now)))

	table := Table{"claude-test": FromPerMillion(3, 15, 3.75, 0.3)}
	require.NoError(t, cache.Save(table))

	entry, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, CacheVersion, entry.Version)
	assert.True(t, entry.LastUpdated.Equal(now))
	assert.Equal(t, table, entry.Entries)

	// only the cache file remains; the temp file was renamed away
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pricing_cache.json", files[0].Name())
}

func TestCacheSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing_cache.json")
	cache := NewCache(path)

	require.NoError(t, cache.Save(Table{"a": FromPerMillion(1, 1, 1, 1)}))
	require.NoError(t, cache.Save(Table{"b": FromPerMillion(2, 2, 2, 2)}))

	entry, err := cache.Load()
	require.NoError(t, err)
	assert.Contains(t, entry.Entries, "b")
	assert.NotContains(t, entry.Entries, "a")
}

func TestCacheClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing_cache.json")
	cache := NewCache(path)

	require.NoError(t, cache.Clear(), "clearing a missing cache is not an error")
	require.NoError(t, cache.Save(Builtin()))
	require.NoError(t, cache.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "pricing_cache.json")

	status := NewCache(path).Status()
	assert.False(t, status.Exists)
	assert.False(t, status.Valid)

	writeEntry(t, path, CacheEntry{Version: CacheVersion, LastUpdated: now.Add(-2 * time.Hour), Entries: Builtin()})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	status = NewCache(path, WithClock(fixedClock(now))).Status()
	assert.True(t, status.Exists)
	assert.True(t, status.Valid)
	assert.Equal(t, 2*time.Hour, status.Age)
	assert.Equal(t, len(Builtin()), status.Entries)

	stale := NewCache(path, WithClock(fixedClock(now.Add(8*24*time.Hour)))).Status()
	assert.True(t, stale.Exists)
	assert.False(t, stale.Valid)
	assert.Contains(t, stale.Reason, "stale")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "status must not modify the cache")
}
