package keys

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"case and padding", "  Foo   BAR ", "foo bar"},
		{"tabs and newlines", "foo\t\nbar", "foo bar"},
		{"punctuation stripped", "What's up?!", "whats up"},
		{"allowed symbols kept", "src/main.go: fix_it-now", "src/maingo: fix_it-now"},
		{"strip leaves no double space", "a ! b", "a b"},
		{"leading stripped char", "! a", "a"},
		{"unicode dropped", "café résumé", "caf rsum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  Foo   BAR ",
		"a ! b ? c",
		"Summarize README.md, then list TODOs!!",
		"\tmixed spaces here",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_CaseAndWhitespaceInsensitive(t *testing.T) {
	if Normalize("  Foo   BAR ") != Normalize("foo bar") {
		t.Error("Normalize should ignore case and whitespace differences")
	}
}

func TestHashKey(t *testing.T) {
	h1 := HashKey("test")
	h2 := HashKey("test")
	h3 := HashKey("other")

	if h1 != h2 {
		t.Error("Same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("Different input should produce different hash")
	}
	if len(h1) != 64 { // SHA-256 hex = 64 chars
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("Hello  World") != Fingerprint("hello world") {
		t.Error("Fingerprint should be computed over the normalized prompt")
	}
	if Fingerprint("hello world") == Fingerprint("hello there") {
		t.Error("Distinct prompts should produce distinct fingerprints")
	}
	if Fingerprint("hello") != HashKey("hello") {
		t.Error("Fingerprint of a normalized prompt should equal its hash")
	}
}

func TestExactKey(t *testing.T) {
	k1 := ExactKey("List files", "sig", "slot")
	k2 := ExactKey("list   FILES", "sig", "slot")
	k3 := ExactKey("list files", "other-sig", "slot")
	k4 := ExactKey("list files", "sig", "")

	if k1 != k2 {
		t.Error("Same normalized prompt should produce same exact key")
	}
	if k1 == k3 {
		t.Error("Different context signature should produce different exact key")
	}
	if k1 == k4 {
		t.Error("Different slot should produce different exact key")
	}
	if k1 != HashKey("list files||sig||slot") {
		t.Errorf("ExactKey layout changed: %s", k1)
	}
}

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes error: %v", err)
	}
}

func TestContextSignature_Stable(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	writeFile(t, a, "alpha", mtime)
	writeFile(t, b, "bravo!", mtime)

	sig1, files := ContextSignature([]string{b, a, a}, "slot")
	sig2, _ := ContextSignature([]string{a, b}, "slot")
	if sig1 != sig2 {
		t.Error("Signature should not depend on input order or duplicates")
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].Path != a || files[1].Path != b {
		t.Errorf("files not sorted by path: %+v", files)
	}
	if files[1].Size != 6 {
		t.Errorf("Size = %d, want 6", files[1].Size)
	}
	if files[0].Mtime != float64(mtime.Unix()) {
		t.Errorf("Mtime = %v, want %v", files[0].Mtime, float64(mtime.Unix()))
	}

	sig3, _ := ContextSignature([]string{a, b}, "other")
	if sig1 == sig3 {
		t.Error("Different slot should change the signature")
	}
}

func TestContextSignature_ChangesWithFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "notes.md")
	writeFile(t, p, "v1", time.Unix(1_700_000_000, 0))
	before, _ := ContextSignature([]string{p}, "")

	writeFile(t, p, "v2 longer", time.Unix(1_700_000_100, 0))
	after, _ := ContextSignature([]string{p}, "")

	if before == after {
		t.Error("Signature should change when the file changes")
	}
}

func TestContextSignature_DropsMissingAndDirs(t *testing.T) {
	dir := t.TempDir()
	sigEmpty, files := ContextSignature(nil, "")
	if files == nil || len(files) != 0 {
		t.Errorf("files = %v, want empty non-nil slice", files)
	}

	sigMissing, files := ContextSignature([]string{filepath.Join(dir, "nope"), dir, ""}, "")
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
	if sigEmpty != sigMissing {
		t.Error("Missing paths and directories should be dropped silently")
	}
	if sigEmpty != HashKey(`{"files":[],"slot":""}`) {
		t.Errorf("Empty signature payload changed: %s", sigEmpty)
	}
}

func TestDerive(t *testing.T) {
	d := Derive("  Check STATUS ", "s1", nil)
	if d.NormalizedPrompt != "check status" {
		t.Errorf("NormalizedPrompt = %q, want %q", d.NormalizedPrompt, "check status")
	}
	if d.PromptFingerprint != Fingerprint("check status") {
		t.Error("PromptFingerprint mismatch")
	}
	sig, _ := ContextSignature(nil, "s1")
	if d.ContextSignature != sig {
		t.Error("ContextSignature mismatch")
	}
	if d.ExactKey != ExactKey("check status", sig, "s1") {
		t.Error("ExactKey mismatch")
	}
}
