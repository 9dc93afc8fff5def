package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dshills/recall/internal/cache"
)

func TestJSONWriter(t *testing.T) {
	checked := 3
	bypass := false
	outcome := cache.Outcome{
		Reason: cache.ReasonMiss,
		CacheReport: cache.CacheReport{
			Bypass:           &bypass,
			ContextSignature: "sig<&>",
			CheckedEntries:   &checked,
		},
	}

	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, outcome); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if parsed["hit"] != false || parsed["reason"] != "miss" {
		t.Errorf("hit/reason = %v/%v", parsed["hit"], parsed["reason"])
	}
	report := parsed["cache_report"].(map[string]any)
	if report["checked_entries"] != float64(3) {
		t.Errorf("checked_entries = %v", report["checked_entries"])
	}
	if _, ok := parsed["entry"]; ok {
		t.Error("entry should be omitted on a miss")
	}
	if !strings.Contains(buf.String(), "sig<&>") {
		t.Error("HTML characters should not be escaped")
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Error("output should end with a newline")
	}
}

func TestGetWriter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"", false},
		{"markdown", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := GetWriter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetWriter(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}
