package compact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestBullets(t *testing.T) {
	long := strings.Repeat("x", 160)
	text := strings.Join([]string{
		"# Notes",
		"",
		"- existing bullet",
		"plain line",
		"   - existing bullet   ",
		long,
		"- " + long,
		"plain line",
	}, "\n")

	got := Bullets(text, 10)
	want := []string{"- # Notes", "- existing bullet", "- plain line", "- " + long}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Bullets = %q, want %q", got, want)
	}
}

func TestBullets_MaxItems(t *testing.T) {
	text := "a\nb\nc\nd\n"
	if got := Bullets(text, 2); !reflect.DeepEqual(got, []string{"- a", "- b"}) {
		t.Errorf("Bullets(2) = %q", got)
	}
	many := strings.Repeat("line\n", 1) + "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	if got := Bullets(many, 0); len(got) != DefaultMaxItems {
		t.Errorf("Bullets(0) returned %d items, want %d", len(got), DefaultMaxItems)
	}
}

func TestBullets_Empty(t *testing.T) {
	got := Bullets("\n\n   \n", 5)
	if got == nil || len(got) != 0 {
		t.Errorf("Bullets = %#v, want empty non-nil slice", got)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "session.md")
	tgt := filepath.Join(dir, "memory", "MEMORY.md")
	os.WriteFile(src, []byte("decided to use flock\napi_key=sk-live-123456\n- shipped v1\n"), 0o644)

	fixed := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	res, err := Run(Options{Source: src, Target: tgt, Now: func() time.Time { return fixed }})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}

	data, err := os.ReadFile(tgt)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	want := "\n## Compacted update\n" +
		"- Source: " + src + "\n" +
		"- At: 2025-05-04T03:02:01Z\n" +
		"- decided to use flock\n" +
		"- [REDACTED]\n" +
		"- shipped v1\n"
	if string(data) != want {
		t.Errorf("target =\n%s\nwant\n%s", data, want)
	}

	if _, err := Run(Options{Source: src, Target: tgt, Now: func() time.Time { return fixed }}); err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	data, _ = os.ReadFile(tgt)
	if strings.Count(string(data), "## Compacted update") != 2 {
		t.Error("second run should append another block")
	}
}

func TestRun_RedactPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prod-secrets.md")
	tgt := filepath.Join(dir, "out.md")
	os.WriteFile(src, []byte("db host is 10.0.0.1\n"), 0o644)

	res, err := Run(Options{Source: src, Target: tgt, RedactPaths: []string{"**/*secrets*"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	data, _ := os.ReadFile(tgt)
	if strings.Contains(string(data), "10.0.0.1") {
		t.Error("content of a redacted path leaked into the target")
	}
	if res.Count != 1 || !strings.HasPrefix(res.Bullets[0], "- [REDACTED]") {
		t.Errorf("Bullets = %q", res.Bullets)
	}
}

func TestRun_MissingSource(t *testing.T) {
	dir := t.TempDir()
	tgt := filepath.Join(dir, "out.md")
	_, err := Run(Options{Source: filepath.Join(dir, "nope.md"), Target: tgt})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
	if _, statErr := os.Stat(tgt); !os.IsNotExist(statErr) {
		t.Error("target should not be created when the source is missing")
	}
}
