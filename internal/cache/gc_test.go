package cache

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGC_EvictsLeastValuableFirst(t *testing.T) {
	c, _, _ := newTestCache(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := c.Store(exactRequest(id, "prompt "+id, "S"))
		require.NoError(t, err)
	}

	rows := readRows(t, c)
	// a: 2 hits; b: never accessed; c: 1 hit long ago; d: 1 hit recently.
	rows[0].Stats.Hits = 2
	rows[0].Stats.LastAccessedAt = NewTimestamp(baseTime)
	rows[2].Stats.Hits = 1
	rows[2].Stats.LastAccessedAt = NewTimestamp(baseTime.Add(-72 * time.Hour))
	rows[3].Stats.Hits = 1
	rows[3].Stats.LastAccessedAt = NewTimestamp(baseTime.Add(-1 * time.Hour))
	require.NoError(t, c.writeIndex(rows))

	sizes := map[string]int64{}
	for _, e := range readRows(t, c) {
		sizes[e.ID] = c.entrySize(e)
	}
	budget := sizes["a"] + sizes["d"]

	res, err := c.GC(budget)
	require.NoError(t, err)
	assert.Equal(t, 4, res.BeforeCount)
	assert.Equal(t, 2, res.AfterCount)
	assert.Equal(t, 0, res.Expired)
	assert.Equal(t, 2, res.Evicted)
	assert.Equal(t, budget, res.AfterSizeBytes)
	assert.Equal(t, sizes["a"]+sizes["b"]+sizes["c"]+sizes["d"], res.BeforeSizeBytes)

	survivors := readRows(t, c)
	require.Len(t, survivors, 2)
	assert.Equal(t, "a", survivors[0].ID, "survivors keep index order")
	assert.Equal(t, "d", survivors[1].ID)
	assert.NoFileExists(t, filepath.Join(c.Dir(), "blobs", "b.json"))
	assert.NoFileExists(t, filepath.Join(c.Dir(), "blobs", "c.json"))
}

func TestGC_UnderBudgetKeepsEverything(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.Store(exactRequest("a", "p", "S"))
	require.NoError(t, err)

	res, err := c.GC(MaxBytesFromMB(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.AfterCount)
	assert.Equal(t, 0, res.Evicted)
	assert.Equal(t, res.BeforeSizeBytes, res.AfterSizeBytes)
	assert.FileExists(t, filepath.Join(c.Dir(), "blobs", "a.json"))
}

func TestGC_EmptyIndex(t *testing.T) {
	c, _, _ := newTestCache(t)
	res, err := c.GC(0)
	require.NoError(t, err)
	assert.Equal(t, GCResult{}, res)
	assert.FileExists(t, filepath.Join(c.Dir(), "index.jsonl"))
}

func TestGC_SizeIncludesRowAndBlob(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.Store(exactRequest("a", "p", "S"))
	require.NoError(t, err)

	e := readRows(t, c)[0]
	line, err := marshalLine(e)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(c.Dir(), "blobs", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(line)-1)+info.Size(), c.entrySize(e))

	require.NoError(t, os.Remove(filepath.Join(c.Dir(), "blobs", "a.json")))
	assert.Equal(t, int64(len(line)-1), c.entrySize(e), "missing blob counts as zero")
}

func TestGC_SharedBlobSurvives(t *testing.T) {
	c, clock, _ := newTestCache(t)
	old := exactRequest("dup", "p", "S")
	old.TTLDays = intPtr(1)
	_, err := c.Store(old)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)
	_, err = c.Store(exactRequest("dup", "p", "S"))
	require.NoError(t, err)

	res, err := c.GC(MaxBytesFromMB(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.FileExists(t, filepath.Join(c.Dir(), "blobs", "dup.json"))
}

func TestGC_IgnoresBlobPathsOutsideBlobs(t *testing.T) {
	c, _, _ := newTestCache(t)
	outside := filepath.Join(c.Dir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	rows := []Entry{{ID: "evil", Kind: KindExact, BlobPath: "../keep.txt"}, {ID: "evil2", Kind: KindExact, BlobPath: "keep.txt"}}
	require.NoError(t, c.writeIndex(rows))

	res, err := c.GC(0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AfterCount)
	assert.FileExists(t, outside)
}

func TestGC_EvictionOrderProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := range 20 {
		t.Run(fmt.Sprintf("round%d", round), func(t *testing.T) {
			c, _, _ := newTestCache(t)
			var rows []Entry
			for i := range 25 {
				e := Entry{
					ID:        fmt.Sprintf("e%02d", i),
					Kind:      KindExact,
					ExpiresAt: NewTimestamp(baseTime.Add(time.Hour)),
					Stats:     EntryStats{Hits: rng.Intn(4)},
				}
				if rng.Intn(3) > 0 {
					e.Stats.LastAccessedAt = NewTimestamp(baseTime.Add(-time.Duration(rng.Intn(1000)) * time.Minute))
				}
				rows = append(rows, e)
			}
			require.NoError(t, c.writeIndex(rows))

			var total int64
			for _, e := range readRows(t, c) {
				total += c.entrySize(e)
			}
			budget := rng.Int63n(total + 1)

			res, err := c.GC(budget)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.AfterSizeBytes, budget)

			survivors := readRows(t, c)
			kept := map[string]bool{}
			for _, s := range survivors {
				kept[s.ID] = true
			}
			for _, victim := range rows {
				if kept[victim.ID] {
					continue
				}
				for _, s := range survivors {
					assert.False(t, lessValuable(s, victim),
						"survivor %s ranks below evicted %s", s.ID, victim.ID)
				}
			}
			for i := 1; i < len(survivors); i++ {
				assert.Less(t, survivors[i-1].ID, survivors[i].ID, "index order preserved")
			}
		})
	}
}
