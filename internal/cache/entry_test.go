package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("exact")
	require.NoError(t, err)
	assert.Equal(t, KindExact, k)

	k, err = ParseKind("semantic")
	require.NoError(t, err)
	assert.Equal(t, KindSemantic, k)

	_, err = ParseKind("fuzzy")
	assert.Error(t, err)
}

func TestVariantKinds(t *testing.T) {
	assert.Equal(t, KindExact, Exact{}.Kind())
	assert.Equal(t, KindSemantic, Semantic{Embedding: []float64{1}}.Kind())
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantSet bool
		want    time.Time
	}{
		{"utc z", `"2025-06-01T09:30:00Z"`, true, true, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
		{"offset", `"2025-06-01T11:30:00+02:00"`, true, true, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
		{"fractional", `"2025-06-01T09:30:00.123456Z"`, true, true, time.Date(2025, 6, 1, 9, 30, 0, 123456000, time.UTC)},
		{"naive", `"2025-06-01T09:30:00"`, true, true, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
		{"garbage", `"tomorrow"`, false, true, time.Time{}},
		{"number", `12345`, false, true, time.Time{}},
		{"null", `null`, false, false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ts))
			got, ok := ts.Time()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSet, ts.IsSet())
			if ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}

			out, err := json.Marshal(ts)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, string(out), "raw value must round-trip")
		})
	}
}

func TestTimestamp_Zero(t *testing.T) {
	var ts Timestamp
	assert.False(t, ts.IsSet())
	assert.Equal(t, "", ts.String())
	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestNewTimestamp(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, loc))
	assert.Equal(t, "2025-01-02T08:04:05Z", ts.String())
}

func TestEntry_Vector(t *testing.T) {
	tests := []struct {
		raw  string
		want []float64
		ok   bool
	}{
		{`[0.1,0.2]`, []float64{0.1, 0.2}, true},
		{`[]`, nil, false},
		{`null`, nil, false},
		{`"text"`, nil, false},
		{``, nil, false},
	}
	for _, tt := range tests {
		e := Entry{Embedding: json.RawMessage(tt.raw)}
		got, ok := e.Vector()
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestLoadMeta(t *testing.T) {
	dir := t.TempDir()

	m, err := LoadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultMeta(), m)
	assert.Equal(t, 30, m.TTL(KindExact))
	assert.Equal(t, 7, m.TTL(KindSemantic))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"),
		[]byte(`{"limits":{"ttl_days":{"semantic":3}}}`), 0o644))
	m, err = LoadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, 30, m.TTL(KindExact))
	assert.Equal(t, 3, m.TTL(KindSemantic))
	assert.Equal(t, 700, m.Limits.CapsuleTokenBudget)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), []byte(`{`), 0o644))
	_, err = LoadMeta(dir)
	assert.Error(t, err)
}

func TestSaveMeta(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	m := DefaultMeta()
	m.Limits.CapsuleTokenBudget = 1000
	require.NoError(t, SaveMeta(dir, m))

	got, err := LoadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0.0","limits":{"ttl_days":{"exact":30,"semantic":7},"capsule_token_budget":1000}}`, string(data))
}
