package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/recall/internal/keys"
)

// Kind discriminates how an entry is matched.
type Kind string

const (
	KindExact    Kind = "exact"
	KindSemantic Kind = "semantic"
)

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindExact, KindSemantic:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown entry type %q (want exact or semantic)", s)
	}
}

// Variant carries the kind-specific part of a store request.
// It is implemented by [Exact] and [Semantic] only.
type Variant interface {
	Kind() Kind
	variant()
}

// Exact entries are matched by prompt fingerprint and context signature.
type Exact struct{}

// Kind returns KindExact.
func (Exact) Kind() Kind { return KindExact }
func (Exact) variant()   {}

// Semantic entries are matched by embedding similarity within a context
// signature.
type Semantic struct {
	Embedding []float64
}

// Kind returns KindSemantic.
func (Semantic) Kind() Kind { return KindSemantic }
func (Semantic) variant()   {}

// Entry is one row of the index.
type Entry struct {
	ID                string              `json:"id"`
	Kind              Kind                `json:"type"`
	CreatedAt         Timestamp           `json:"created_at"`
	ExpiresAt         Timestamp           `json:"expires_at"`
	ContextSignature  string              `json:"context_signature"`
	PromptFingerprint string              `json:"prompt_fingerprint"`
	Embedding         json.RawMessage     `json:"embedding"`
	Capsule           json.RawMessage     `json:"capsule"`
	ResultSummary     string              `json:"result_summary"`
	Stats             EntryStats          `json:"stats"`
	SourceFiles       []keys.FileSnapshot `json:"source_files"`
	BlobPath          string              `json:"blob_path"`
	SkillVersion      string              `json:"skill_version"`
}

// EntryStats tracks usage of an entry.
type EntryStats struct {
	Hits             int       `json:"hits"`
	LastAccessedAt   Timestamp `json:"last_accessed_at"`
	SizeBytes        int64     `json:"size_bytes"`
	TokensAvoidedEst int64     `json:"tokens_avoided_est"`
}

// Vector decodes the entry's embedding. It reports false when the embedding
// is absent, empty, or not a numeric array.
func (e Entry) Vector() ([]float64, bool) {
	if len(e.Embedding) == 0 {
		return nil, false
	}
	var v []float64
	if err := json.Unmarshal(e.Embedding, &v); err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

// View returns the caller-facing part of the entry.
func (e Entry) View() *EntryView {
	return &EntryView{ID: e.ID, Capsule: e.Capsule, ResultSummary: e.ResultSummary}
}

// EntryView is the entry payload returned on a hit.
type EntryView struct {
	ID            string          `json:"id"`
	Capsule       json.RawMessage `json:"capsule"`
	ResultSummary string          `json:"result_summary"`
}

// Timestamp is an RFC 3339 time as stored in the index. The raw JSON value
// is kept so that values that fail to parse survive a rewrite unchanged.
type Timestamp struct {
	raw json.RawMessage
}

// NewTimestamp returns a Timestamp for t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	b, _ := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	return Timestamp{raw: b}
}

// naiveLayout accepts timestamps written without a zone offset, read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Time parses the timestamp. It reports false when the value is absent,
// null, or unparseable.
func (ts Timestamp) Time() (time.Time, bool) {
	s := ts.String()
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(naiveLayout, s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// IsSet reports whether the timestamp carries any non-null value.
func (ts Timestamp) IsSet() bool {
	return len(ts.raw) > 0 && !bytes.Equal(ts.raw, []byte("null"))
}

// String returns the stored string, or "" for absent and non-string values.
func (ts Timestamp) String() string {
	if !ts.IsSet() {
		return ""
	}
	var s string
	if err := json.Unmarshal(ts.raw, &s); err != nil {
		return ""
	}
	return s
}

// MarshalJSON writes the raw value back, or null when absent.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if len(ts.raw) == 0 {
		return []byte("null"), nil
	}
	return ts.raw, nil
}

// UnmarshalJSON keeps any JSON value verbatim.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	ts.raw = append(json.RawMessage(nil), b...)
	return nil
}
