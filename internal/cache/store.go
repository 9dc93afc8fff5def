package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/recall/internal/keys"
	"github.com/dshills/recall/internal/metrics"
	"go.uber.org/zap"
)

// bytesPerToken estimates tokens from capsule bytes.
const bytesPerToken = 4

// StoreRequest describes a result to cache.
type StoreRequest struct {
	ID                string
	Variant           Variant
	ContextSignature  string
	PromptFingerprint string
	SourceFiles       []keys.FileSnapshot
	Capsule           json.RawMessage
	ResultSummary     string
	// TTLDays overrides the per-kind default from meta.json when non-nil.
	TTLDays          *int
	TokensAvoidedEst int64
}

// StoreResult reports where an entry was written.
type StoreResult struct {
	Stored bool   `json:"stored"`
	ID     string `json:"id"`
	Blob   string `json:"blob"`
}

type blobPayload struct {
	Capsule       json.RawMessage `json:"capsule"`
	ResultSummary string          `json:"result_summary"`
}

// Store redacts the capsule, writes its blob and appends a new index row.
// Nothing is written when validation fails.
func (c *Cache) Store(req StoreRequest) (StoreResult, error) {
	if err := validateID(req.ID); err != nil {
		return StoreResult{}, fmt.Errorf("store %q: %w", req.ID, err)
	}

	var embedding json.RawMessage
	switch v := req.Variant.(type) {
	case Exact:
	case Semantic:
		if len(v.Embedding) == 0 {
			return StoreResult{}, fmt.Errorf("store %q: %w", req.ID, ErrMissingEmbedding)
		}
		b, err := json.Marshal(v.Embedding)
		if err != nil {
			return StoreResult{}, fmt.Errorf("store %q: encoding embedding: %w", req.ID, err)
		}
		embedding = b
	default:
		return StoreResult{}, fmt.Errorf("store %q: unsupported variant %T", req.ID, req.Variant)
	}
	if !json.Valid(req.Capsule) {
		return StoreResult{}, fmt.Errorf("store %q: %w", req.ID, ErrInvalidCapsule)
	}

	var result StoreResult
	err := c.withLock(func() error {
		meta, err := LoadMeta(c.dir)
		if err != nil {
			return err
		}
		kind := req.Variant.Kind()
		ttlDays := meta.TTL(kind)
		if req.TTLDays != nil {
			ttlDays = *req.TTLDays
		}
		if ttlDays <= 0 {
			return fmt.Errorf("%w: %d days", ErrInvalidTTL, ttlDays)
		}

		rows, _, err := c.readIndex()
		if err != nil {
			return err
		}
		now := c.now().UTC()
		for _, e := range rows {
			if e.ID == req.ID && !c.expired(e, now) {
				return ErrDuplicateID
			}
		}

		capsule, err := c.redactor.Payload(req.Capsule)
		if err != nil {
			return fmt.Errorf("redacting capsule: %w", err)
		}
		summary := c.redactor.Secrets(req.ResultSummary)

		if budget := meta.Limits.CapsuleTokenBudget; budget > 0 {
			if est := len(capsule) / bytesPerToken; est > budget {
				c.logger.Warn("capsule exceeds token budget",
					zap.String("id", req.ID), zap.Int("estimated_tokens", est), zap.Int("budget", budget))
			}
		}

		blob, err := encodeBlob(blobPayload{Capsule: capsule, ResultSummary: summary})
		if err != nil {
			return err
		}
		blobRel := path.Join(blobsDir, req.ID+".json")
		blobAbs := filepath.Join(c.dir, filepath.FromSlash(blobRel))
		if err := writeFileAtomic(blobAbs, blob); err != nil {
			return fmt.Errorf("writing blob: %w", err)
		}

		entry := Entry{
			ID:                req.ID,
			Kind:              kind,
			CreatedAt:         NewTimestamp(now),
			ExpiresAt:         NewTimestamp(now.Add(time.Duration(ttlDays) * 24 * time.Hour)),
			ContextSignature:  req.ContextSignature,
			PromptFingerprint: req.PromptFingerprint,
			Embedding:         embedding,
			Capsule:           capsule,
			ResultSummary:     summary,
			Stats: EntryStats{
				SizeBytes:        int64(len(blob)),
				TokensAvoidedEst: max(req.TokensAvoidedEst, 0),
			},
			SourceFiles:  c.redactSources(req.SourceFiles),
			BlobPath:     blobRel,
			SkillVersion: meta.Version,
		}
		if err := c.appendEntry(entry); err != nil {
			if rmErr := os.Remove(blobAbs); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				c.logger.Warn("removing orphan blob", zap.String("id", req.ID), zap.Error(rmErr))
			}
			return err
		}

		c.emit(metrics.Stored(now, entry.ID, string(kind), entry.ContextSignature, entry.Stats.TokensAvoidedEst))
		result = StoreResult{Stored: true, ID: entry.ID, Blob: blobAbs}
		return nil
	})
	if err != nil {
		return StoreResult{}, fmt.Errorf("store %q: %w", req.ID, err)
	}
	return result, nil
}

func (c *Cache) redactSources(files []keys.FileSnapshot) []keys.FileSnapshot {
	out := make([]keys.FileSnapshot, len(files))
	for i, f := range files {
		f.Path = c.redactor.Secrets(f.Path)
		out[i] = f
	}
	return out
}

// encodeBlob renders the blob as 2-space indented JSON.
func encodeBlob(p blobPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding blob: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// validateID rejects ids that would not map to a file inside blobs/.
func validateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return ErrInvalidID
	case strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
		return ErrInvalidID
	}
	return nil
}
