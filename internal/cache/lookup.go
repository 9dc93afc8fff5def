package cache

import (
	"fmt"
	"math"
	"strings"

	"github.com/dshills/recall/internal/config"
	"github.com/dshills/recall/internal/keys"
	"github.com/dshills/recall/internal/metrics"
)

// Lookup outcome reasons for a non-hit.
const (
	ReasonBypass = "bypass"
	ReasonMiss   = "miss"
)

// Query is a lookup request.
type Query struct {
	Prompt           string
	ContextSignature string
	// Threshold is the minimum similarity for a semantic hit. Nil selects
	// config.DefaultSimilarityThreshold.
	Threshold *float64
	// Embedding enables the semantic step when non-nil.
	Embedding []float64
}

// Outcome is the result of a lookup.
type Outcome struct {
	Hit         bool        `json:"hit"`
	Reason      string      `json:"reason,omitempty"`
	HitType     Kind        `json:"hit_type,omitempty"`
	Similarity  *float64    `json:"similarity,omitempty"`
	Entry       *EntryView  `json:"entry,omitempty"`
	CacheReport CacheReport `json:"cache_report"`
}

// CacheReport describes how an outcome was reached.
type CacheReport struct {
	Bypass           *bool               `json:"bypass,omitempty"`
	Trigger          string              `json:"trigger,omitempty"`
	Key              string              `json:"key,omitempty"`
	TTLExpiresAt     *Timestamp          `json:"ttl_expires_at,omitempty"`
	ContextSignature string              `json:"context_signature"`
	SourceFiles      []keys.FileSnapshot `json:"source_files,omitempty"`
	CheckedEntries   *int                `json:"checked_entries,omitempty"`
}

// IsBypass reports whether the prompt asks to skip the cache.
func (c *Cache) IsBypass(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, phrase := range c.bypass {
		if strings.Contains(p, phrase) {
			return true
		}
	}
	return false
}

// Lookup answers q: a bypass phrase wins outright, then the first live exact
// entry matching fingerprint and signature, then the most similar live
// semantic entry in the same signature at or above the threshold.
func (c *Cache) Lookup(q Query) (Outcome, error) {
	now := c.now().UTC()

	if c.IsBypass(q.Prompt) {
		bypass := true
		c.emit(metrics.Bypass(now))
		return Outcome{
			Reason: ReasonBypass,
			CacheReport: CacheReport{
				Bypass:           &bypass,
				Trigger:          "bypass phrase",
				ContextSignature: q.ContextSignature,
			},
		}, nil
	}

	threshold := config.DefaultSimilarityThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	fingerprint := keys.Fingerprint(q.Prompt)

	var out Outcome
	err := c.withLock(func() error {
		rows, _, err := c.readIndex()
		if err != nil {
			return err
		}

		exactIdx, semanticIdx := -1, -1
		best := -1.0
		for i, e := range rows {
			if c.expired(e, now) || e.ContextSignature != q.ContextSignature {
				continue
			}
			switch e.Kind {
			case KindExact:
				if exactIdx < 0 && e.PromptFingerprint == fingerprint {
					exactIdx = i
				}
			case KindSemantic:
				if q.Embedding == nil {
					continue
				}
				vec, ok := e.Vector()
				if !ok {
					continue
				}
				if score := Cosine(q.Embedding, vec); score > best {
					best = score
					semanticIdx = i
				}
			}
		}

		hitIdx := -1
		var similarity *float64
		switch {
		case exactIdx >= 0:
			hitIdx = exactIdx
		case semanticIdx >= 0 && best >= threshold:
			hitIdx = semanticIdx
			similarity = &best
		}

		if hitIdx < 0 {
			bypass := false
			checked := len(rows)
			c.emit(metrics.Miss(now, checked))
			out = Outcome{
				Reason: ReasonMiss,
				CacheReport: CacheReport{
					Bypass:           &bypass,
					ContextSignature: q.ContextSignature,
					CheckedEntries:   &checked,
				},
			}
			return nil
		}

		hit := &rows[hitIdx]
		hit.Stats.Hits++
		hit.Stats.LastAccessedAt = NewTimestamp(now)
		if err := c.writeIndex(rows); err != nil {
			return err
		}

		expires := hit.ExpiresAt
		out = Outcome{
			Hit:        true,
			HitType:    hit.Kind,
			Similarity: similarity,
			Entry:      hit.View(),
			CacheReport: CacheReport{
				Key:              hit.ID,
				TTLExpiresAt:     &expires,
				ContextSignature: hit.ContextSignature,
				SourceFiles:      hit.SourceFiles,
			},
		}
		c.emit(metrics.Hit(now, string(hit.Kind), hit.ID, similarity))
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup: %w", err)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or -1 when either vector
// is empty or zero, or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
