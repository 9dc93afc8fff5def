// Package compact appends short, redacted bullet digests of a markdown file
// to a running memory file.
package compact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/recall/internal/redact"
)

// DefaultMaxItems caps the number of bullets per digest.
const DefaultMaxItems = 8

// maxLineRunes is the exclusive length limit for promoting a plain line to a
// bullet. Existing bullets are kept regardless of length.
const maxLineRunes = 160

// ErrSourceNotFound is returned when the source file does not exist.
var ErrSourceNotFound = errors.New("source file not found")

// Options configures a compaction run.
type Options struct {
	Source   string
	Target   string
	MaxItems int
	// RedactPaths are globs whose files are replaced whole by the redaction
	// placeholder before compaction.
	RedactPaths []string
	Redactor    *redact.Redactor
	Now         func() time.Time
}

// Result reports what was appended.
type Result struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Count   int      `json:"count"`
	Bullets []string `json:"bullets"`
}

// Bullets extracts up to maxItems distinct bullets from text in order.
// Lines starting with "- " are kept as is; other non-empty lines shorter
// than 160 characters become bullets.
func Bullets(text string, maxItems int) []string {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = line
		case utf8.RuneCountInString(line) < maxLineRunes:
			item = "- " + line
		default:
			continue
		}
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}

// Run reads the source, redacts it, and appends a digest block to the
// target, creating the target and its directory if needed.
func Run(opts Options) (Result, error) {
	data, err := os.ReadFile(opts.Source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("compact %q: %w", opts.Source, ErrSourceNotFound)
		}
		return Result{}, fmt.Errorf("compact %q: %w", opts.Source, err)
	}

	r := opts.Redactor
	if r == nil {
		r = redact.Default()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	text := r.Content(string(data), opts.Source, opts.RedactPaths)
	bullets := Bullets(text, opts.MaxItems)

	var b strings.Builder
	b.WriteString("\n## Compacted update\n")
	fmt.Fprintf(&b, "- Source: %s\n", opts.Source)
	fmt.Fprintf(&b, "- At: %s\n", now().UTC().Format(time.RFC3339Nano))
	for _, item := range bullets {
		b.WriteString(item)
		b.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Target), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating target directory: %w", err)
	}
	f, err := os.OpenFile(opts.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("opening target: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return Result{}, fmt.Errorf("appending to target: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("closing target: %w", err)
	}

	return Result{Source: opts.Source, Target: opts.Target, Count: len(bullets), Bullets: bullets}, nil
}
