package cache

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

// GCResult summarizes a garbage collection pass.
type GCResult struct {
	BeforeCount     int   `json:"before_count"`
	AfterCount      int   `json:"after_count"`
	BeforeSizeBytes int64 `json:"before_size_bytes"`
	AfterSizeBytes  int64 `json:"after_size_bytes"`
	MaxBytes        int64 `json:"max_bytes"`
	Expired         int   `json:"expired"`
	Evicted         int   `json:"evicted"`
}

// MaxBytesFromMB converts a budget in MiB to bytes.
func MaxBytesFromMB(mb float64) int64 {
	return int64(mb * 1024 * 1024)
}

type sizedEntry struct {
	entry Entry
	size  int64
	pos   int
}

// GC drops expired entries, then evicts the least valuable survivors until
// the total size fits maxBytes. Value orders by hits, then last access,
// with never-accessed entries first. Survivors keep their index order.
func (c *Cache) GC(maxBytes int64) (GCResult, error) {
	result := GCResult{MaxBytes: maxBytes}
	err := c.withLock(func() error {
		rows, _, err := c.readIndex()
		if err != nil {
			return err
		}
		now := c.now().UTC()

		all := make([]sizedEntry, len(rows))
		for i, e := range rows {
			all[i] = sizedEntry{entry: e, size: c.entrySize(e), pos: i}
			result.BeforeSizeBytes += all[i].size
		}
		result.BeforeCount = len(rows)

		var kept, expired []sizedEntry
		for _, se := range all {
			if c.expired(se.entry, now) {
				expired = append(expired, se)
			} else {
				kept = append(kept, se)
			}
		}
		result.Expired = len(expired)

		var total int64
		for _, se := range kept {
			total += se.size
		}
		var evicted []sizedEntry
		if total > maxBytes {
			sort.SliceStable(kept, func(i, j int) bool {
				return lessValuable(kept[i].entry, kept[j].entry)
			})
			for len(kept) > 0 && total > maxBytes {
				victim := kept[0]
				kept = kept[1:]
				total -= victim.size
				evicted = append(evicted, victim)
				c.logger.Debug("evicting entry", zap.String("id", victim.entry.ID),
					zap.Int("hits", victim.entry.Stats.Hits), zap.Int64("size_bytes", victim.size))
			}
			sort.SliceStable(kept, func(i, j int) bool { return kept[i].pos < kept[j].pos })
		}

		survivors := make([]Entry, len(kept))
		for i, se := range kept {
			survivors[i] = se.entry
		}
		if err := c.writeIndex(survivors); err != nil {
			return err
		}

		c.deleteBlobs(append(expired, evicted...), survivors)

		result.AfterCount = len(survivors)
		result.AfterSizeBytes = total
		result.Evicted = result.BeforeCount - result.AfterCount
		return nil
	})
	if err != nil {
		return GCResult{}, fmt.Errorf("gc: %w", err)
	}
	return result, nil
}

// lessValuable orders entries for eviction.
func lessValuable(a, b Entry) bool {
	if a.Stats.Hits != b.Stats.Hits {
		return a.Stats.Hits < b.Stats.Hits
	}
	return lastAccess(a).Before(lastAccess(b))
}

// lastAccess returns the zero time for entries never accessed.
func lastAccess(e Entry) time.Time {
	t, _ := e.Stats.LastAccessedAt.Time()
	return t
}

// deleteBlobs removes the blob files of removed entries unless a surviving
// entry still references them. Failures are logged and ignored.
func (c *Cache) deleteBlobs(removed []sizedEntry, survivors []Entry) {
	skip := make(map[string]bool, len(survivors))
	for _, e := range survivors {
		if p, ok := c.blobFile(e.BlobPath); ok {
			skip[p] = true
		}
	}
	for _, se := range removed {
		p, ok := c.blobFile(se.entry.BlobPath)
		if !ok || skip[p] {
			continue
		}
		skip[p] = true
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("deleting blob", zap.String("id", se.entry.ID), zap.Error(err))
		}
	}
}
