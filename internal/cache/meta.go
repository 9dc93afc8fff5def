package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Meta is the engine configuration stored in meta.json.
type Meta struct {
	Version string `json:"version"`
	Limits  Limits `json:"limits"`
}

// Limits holds per-cache limits.
type Limits struct {
	TTLDays            TTLDays `json:"ttl_days"`
	CapsuleTokenBudget int     `json:"capsule_token_budget"`
}

// TTLDays is the default lifetime of each kind, in days.
type TTLDays struct {
	Exact    int `json:"exact"`
	Semantic int `json:"semantic"`
}

// DefaultMeta returns the engine configuration used when meta.json is absent.
func DefaultMeta() Meta {
	return Meta{
		Version: "1.0.0",
		Limits: Limits{
			TTLDays:            TTLDays{Exact: 30, Semantic: 7},
			CapsuleTokenBudget: 700,
		},
	}
}

// TTL returns the default lifetime in days for kind.
func (m Meta) TTL(kind Kind) int {
	switch kind {
	case KindSemantic:
		return m.Limits.TTLDays.Semantic
	default:
		return m.Limits.TTLDays.Exact
	}
}

// LoadMeta reads meta.json from dir. Missing keys keep their defaults.
func LoadMeta(dir string) (Meta, error) {
	m := DefaultMeta()
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return m, fmt.Errorf("reading %s: %w", metaFile, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing %s: %w", metaFile, err)
	}
	if m.Version == "" {
		m.Version = DefaultMeta().Version
	}
	return m, nil
}

// SaveMeta writes m to dir/meta.json.
func SaveMeta(dir string, m Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, metaFile), append(data, '\n'))
}
