package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/sdpower/ccledger/internal/types"
)

const (
	// CacheVersion is the schema version written into every cache file.
	CacheVersion = "v1.0.0"
	// DefaultCacheTTL is how long a saved table stays valid.
	DefaultCacheTTL = 7 * 24 * time.Hour

	cacheFileName = "pricing_cache.json"
)

// ErrNoCache marks a cache file that has not been written yet.
var ErrNoCache = errors.New("no cache yet")

// CacheEntry is the on-disk cache document.
type CacheEntry struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Entries     Table     `json:"entries"`
}

// CacheStatus describes the cache without touching it.
type CacheStatus struct {
	Path        string        `json:"path"`
	Exists      bool          `json:"exists"`
	Valid       bool          `json:"valid"`
	Reason      string        `json:"reason,omitempty"`
	Version     string        `json:"version,omitempty"`
	LastUpdated time.Time     `json:"last_updated,omitempty"`
	Age         time.Duration `json:"age"`
	Entries     int           `json:"entries"`
}

// Cache persists a pricing table as a single JSON file.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

type CacheOption func(*Cache)

// WithClock overrides the time source used for age checks and timestamps.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides the validity window. Non-positive values keep the default.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewCache(path string, opts ...CacheOption) *Cache {
	c := &Cache{
		path: path,
		ttl:  DefaultCacheTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultCachePath resolves the cache file under the user cache directory.
func DefaultCachePath() (string, error) {
	if base := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); base != "" {
		return filepath.Join(base, "ccledger", cacheFileName), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("pricing cache: resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "ccledger", cacheFileName), nil
}

func (c *Cache) Path() string {
	return c.path
}

// Load returns the cached table if it exists, matches the schema version and
// is no older than the TTL. Any other outcome is an error wrapping
// types.ErrCacheInvalid.
func (c *Cache) Load() (*CacheEntry, error) {
	entry, err := c.read()
	if err != nil {
		return nil, err
	}
	if err := c.validate(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache) read() (*CacheEntry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w at %s", types.ErrCacheInvalid, ErrNoCache, c.path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrCacheInvalid, c.path, err)
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrCacheInvalid, c.path, err)
	}
	return &entry, nil
}

func (c *Cache) validate(entry *CacheEntry) error {
	if !semver.IsValid(entry.Version) || semver.Compare(entry.Version, CacheVersion) != 0 {
		return fmt.Errorf("%w: version %q, want %s", types.ErrCacheInvalid, entry.Version, CacheVersion)
	}
	age := c.now().Sub(entry.LastUpdated)
	if age < 0 {
		return fmt.Errorf("%w: last_updated %s is in the future", types.ErrCacheInvalid, entry.LastUpdated.Format(time.RFC3339))
	}
	if age > c.ttl {
		return fmt.Errorf("%w: stale, age %s exceeds %s", types.ErrCacheInvalid, age.Round(time.Second), c.ttl)
	}
	if len(entry.Entries) == 0 {
		return fmt.Errorf("%w: no entries", types.ErrCacheInvalid)
	}
	return nil
}

// Save writes table with the current time and schema version. The document
// goes to a temp file in the same directory which is then renamed over the
// cache path, so readers never observe a partial file.
func (c *Cache) Save(table Table) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pricing cache: create dir: %w", err)
	}

	data, err := json.MarshalIndent(CacheEntry{
		Version:     CacheVersion,
		LastUpdated: c.now().UTC(),
		Entries:     table,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("pricing cache: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pricing_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("pricing cache: create tmp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: write tmp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: sync tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: close tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("pricing cache: rename tmp file: %w", err)
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pricing cache: remove: %w", err)
	}
	return nil
}

// Status reports validity, age and entry count.
func (c *Cache) Status() CacheStatus {
	status := CacheStatus{Path: c.path}
	entry, err := c.read()
	if err != nil {
		if _, statErr := os.Stat(c.path); statErr == nil {
			status.Exists = true
		}
		status.Reason = strings.TrimPrefix(err.Error(), types.ErrCacheInvalid.Error()+": ")
		return status
	}

	status.Exists = true
	status.Version = entry.Version
	status.LastUpdated = entry.LastUpdated
	status.Age = c.now().Sub(entry.LastUpdated)
	status.Entries = len(entry.Entries)
	if err := c.validate(entry); err != nil {
		status.Reason = strings.TrimPrefix(err.Error(), types.ErrCacheInvalid.Error()+": ")
		return status
	}
	status.Valid = true
	return status
}
