package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dshills/recall/internal/config"
	"github.com/dshills/recall/internal/metrics"
	"github.com/dshills/recall/internal/redact"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateID is returned when a live entry already uses the id.
	ErrDuplicateID = errors.New("duplicate entry id")
	// ErrMissingEmbedding is returned when a semantic entry has no embedding.
	ErrMissingEmbedding = errors.New("semantic entry requires an embedding")
	// ErrInvalidID is returned for ids that cannot name a blob file.
	ErrInvalidID = errors.New("invalid entry id")
	// ErrInvalidCapsule is returned when the capsule is not valid JSON.
	ErrInvalidCapsule = errors.New("capsule is not valid JSON")
	// ErrInvalidTTL is returned for a non-positive lifetime.
	ErrInvalidTTL = errors.New("ttl must be positive")
	// ErrLockTimeout is returned when another process holds the index lock.
	ErrLockTimeout = errors.New("timed out waiting for index lock")
)

// DefaultLockTimeout bounds how long an operation waits for the index lock.
const DefaultLockTimeout = 10 * time.Second

// Options configures a Cache. Zero values select defaults.
type Options struct {
	// Redactor scrubs capsules before they are written. Defaults to redact.Default().
	Redactor *redact.Redactor
	// Sink receives store, hit, miss and bypass events. Defaults to
	// metrics.jsonl inside the cache directory.
	Sink metrics.Sink
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// BypassPhrases defaults to config.DefaultBypassPhrases.
	BypassPhrases []string
	// Now defaults to time.Now.
	Now         func() time.Time
	LockTimeout time.Duration
}

// Cache is a file-backed result cache rooted at one directory.
type Cache struct {
	dir         string
	redactor    *redact.Redactor
	sink        metrics.Sink
	logger      *zap.Logger
	bypass      []string
	now         func() time.Time
	lockTimeout time.Duration
}

// New opens the cache in dir, creating it if needed. If dir is empty, uses
// the default cache directory.
func New(dir string, opts Options) (*Cache, error) {
	if dir == "" {
		d, err := defaultCacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(filepath.Join(dir, blobsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := &Cache{
		dir:         dir,
		redactor:    opts.Redactor,
		sink:        opts.Sink,
		logger:      opts.Logger,
		now:         opts.Now,
		lockTimeout: opts.LockTimeout,
	}
	if c.redactor == nil {
		c.redactor = redact.Default()
	}
	if c.sink == nil {
		c.sink = metrics.NewFileSink(filepath.Join(dir, metricsFile))
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.lockTimeout <= 0 {
		c.lockTimeout = DefaultLockTimeout
	}
	phrases := opts.BypassPhrases
	if phrases == nil {
		phrases = config.DefaultBypassPhrases
	}
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.bypass = append(c.bypass, p)
		}
	}
	return c, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// MetricsPath returns the path of the default metrics log.
func (c *Cache) MetricsPath() string {
	return filepath.Join(c.dir, metricsFile)
}

// withLock runs fn while holding the index lock.
func (c *Cache) withLock(fn func() error) (err error) {
	unlock, err := acquireLock(filepath.Join(c.dir, lockFile), c.lockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

// emit records an event. A failing sink never fails the operation.
func (c *Cache) emit(e metrics.Event) {
	if err := c.sink.Emit(e); err != nil {
		c.logger.Warn("recording metrics event", zap.String("event", e.Event), zap.Error(err))
	}
}

// expired reports whether e's expiry is at or before now. Absent or
// unparseable expiries never expire.
func (c *Cache) expired(e Entry, now time.Time) bool {
	t, ok := e.ExpiresAt.Time()
	if !ok {
		if e.ExpiresAt.IsSet() {
			c.logger.Debug("unparseable expires_at, treating as live", zap.String("id", e.ID))
		}
		return false
	}
	return !t.After(now)
}

// Stats returns cache statistics.
type Stats struct {
	Dir            string       `json:"dir"`
	Entries        int          `json:"entries"`
	ByType         map[Kind]int `json:"by_type"`
	Expired        int          `json:"expired"`
	MalformedLines int          `json:"malformed_lines"`
	Hits           int          `json:"hits"`
	IndexBytes     int64        `json:"index_bytes"`
	Blobs          int          `json:"blobs"`
	BlobBytes      int64        `json:"blob_bytes"`
	TotalBytes     int64        `json:"total_bytes"`
	Meta           Meta         `json:"meta"`
}

// GetStats returns information about the cache.
func (c *Cache) GetStats() (Stats, error) {
	stats := Stats{Dir: c.dir, ByType: map[Kind]int{}}
	err := c.withLock(func() error {
		meta, err := LoadMeta(c.dir)
		if err != nil {
			return err
		}
		stats.Meta = meta

		rows, malformed, err := c.readIndex()
		if err != nil {
			return err
		}
		now := c.now()
		stats.Entries = len(rows)
		stats.MalformedLines = malformed
		for _, e := range rows {
			stats.ByType[e.Kind]++
			stats.Hits += e.Stats.Hits
			if c.expired(e, now) {
				stats.Expired++
			}
		}

		if info, err := os.Stat(c.indexPath()); err == nil {
			stats.IndexBytes = info.Size()
		}
		blobs, err := os.ReadDir(filepath.Join(c.dir, blobsDir))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading blobs directory: %w", err)
		}
		for _, b := range blobs {
			if b.IsDir() || filepath.Ext(b.Name()) != ".json" {
				continue
			}
			info, err := b.Info()
			if err != nil {
				continue
			}
			stats.Blobs++
			stats.BlobBytes += info.Size()
		}
		stats.TotalBytes = stats.IndexBytes + stats.BlobBytes
		return nil
	})
	return stats, err
}

// Clear removes the index and all blobs. Engine meta and the metrics log
// are kept.
func (c *Cache) Clear() error {
	return c.withLock(func() error {
		if err := os.Remove(c.indexPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing index: %w", err)
		}
		dir := filepath.Join(c.dir, blobsDir)
		blobs, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("reading blobs directory: %w", err)
		}
		for _, b := range blobs {
			if b.IsDir() || filepath.Ext(b.Name()) != ".json" {
				continue
			}
			if err := os.Remove(filepath.Join(dir, b.Name())); err != nil {
				c.logger.Warn("removing blob", zap.String("blob", b.Name()), zap.Error(err))
			}
		}
		return nil
	})
}

// DefaultDir returns the platform cache directory used when none is given.
func DefaultDir() (string, error) {
	return defaultCacheDir()
}

func defaultCacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "recall"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "recall"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "recall", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "recall", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "recall"), nil
	}
}
