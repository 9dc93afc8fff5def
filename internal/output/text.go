package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/recall/internal/cache"
	"github.com/dshills/recall/internal/calendar"
	"github.com/dshills/recall/internal/compact"
	"github.com/dshills/recall/internal/keys"
	"github.com/dshills/recall/internal/metrics"
)

// TextWriter outputs human-readable text.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, v any) error {
	ew := &errWriter{w: w}

	switch r := v.(type) {
	case keys.Derived:
		writeDerived(ew, r)
	case cache.StoreResult:
		ew.printf("Stored %s\n", r.ID)
		ew.printf("Blob: %s\n", r.Blob)
	case cache.Outcome:
		writeOutcome(ew, r)
	case cache.GCResult:
		ew.printf("Entries: %d -> %d (%d removed, %d expired)\n",
			r.BeforeCount, r.AfterCount, r.Evicted, r.Expired)
		ew.printf("Size: %s -> %s (budget %s)\n",
			humanBytes(r.BeforeSizeBytes), humanBytes(r.AfterSizeBytes), humanBytes(r.MaxBytes))
	case cache.Stats:
		writeStats(ew, r)
	case metrics.Summary:
		writeSummary(ew, r)
	case compact.Result:
		ew.printf("Appended %d bullets from %s to %s\n", r.Count, r.Source, r.Target)
		for _, b := range r.Bullets {
			ew.printf("  %s\n", b)
		}
	case calendar.Created:
		ew.printf("Created event %s\n", r.ID)
		if r.Link != "" {
			ew.printf("Link: %s\n", r.Link)
		}
	default:
		return (&JSONWriter{}).Write(w, v)
	}

	return ew.err
}

func writeDerived(ew *errWriter, d keys.Derived) {
	ew.printf("Normalized prompt:  %s\n", d.NormalizedPrompt)
	ew.printf("Prompt fingerprint: %s\n", d.PromptFingerprint)
	ew.printf("Context signature:  %s\n", d.ContextSignature)
	ew.printf("Exact key:          %s\n", d.ExactKey)
	if len(d.SourceFiles) == 0 {
		return
	}
	ew.printf("Source files (%d):\n", len(d.SourceFiles))
	for _, f := range d.SourceFiles {
		ew.printf("  %s (%s)\n", f.Path, humanBytes(f.Size))
	}
}

func writeOutcome(ew *errWriter, o cache.Outcome) {
	if !o.Hit {
		switch o.Reason {
		case cache.ReasonBypass:
			ew.printf("BYPASS (%s)\n", o.CacheReport.Trigger)
		default:
			checked := 0
			if o.CacheReport.CheckedEntries != nil {
				checked = *o.CacheReport.CheckedEntries
			}
			ew.printf("MISS (%d entries checked)\n", checked)
		}
		return
	}

	ew.printf("HIT %s", o.HitType)
	if o.Similarity != nil {
		ew.printf(" (similarity %.4f)", *o.Similarity)
	}
	ew.println("")
	ew.printf("Key: %s\n", o.CacheReport.Key)
	if o.CacheReport.TTLExpiresAt != nil {
		ew.printf("Expires: %s\n", o.CacheReport.TTLExpiresAt)
	}
	if o.Entry != nil && o.Entry.ResultSummary != "" {
		ew.println(strings.Repeat("─", 60))
		for _, line := range wrapText(o.Entry.ResultSummary, 70) {
			ew.printf("  %s\n", line)
		}
	}
}

func writeStats(ew *errWriter, s cache.Stats) {
	ew.printf("Cache: %s (schema %s)\n", s.Dir, s.Meta.Version)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Entries: %d", s.Entries)
	if len(s.ByType) > 0 {
		kinds := make([]string, 0, len(s.ByType))
		for k := range s.ByType {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%d %s", s.ByType[cache.Kind(k)], k))
		}
		ew.printf(" (%s)", strings.Join(parts, ", "))
	}
	ew.println("")
	ew.printf("Expired: %d | Hits: %d\n", s.Expired, s.Hits)
	if s.MalformedLines > 0 {
		ew.printf("Malformed index lines: %d\n", s.MalformedLines)
	}
	ew.printf("Size: %s (index %s, %d blobs %s)\n",
		humanBytes(s.TotalBytes), humanBytes(s.IndexBytes), s.Blobs, humanBytes(s.BlobBytes))
	ew.printf("TTL days: exact %d, semantic %d | capsule budget %d tokens\n",
		s.Meta.Limits.TTLDays.Exact, s.Meta.Limits.TTLDays.Semantic, s.Meta.Limits.CapsuleTokenBudget)
}

func writeSummary(ew *errWriter, s metrics.Summary) {
	ew.printf("Lookups: %d | Hit rate: %.1f%%\n", s.Lookups, s.HitRate*100)
	events := make([]string, 0, len(s.Events))
	for e := range s.Events {
		events = append(events, e)
	}
	sort.Strings(events)
	for _, e := range events {
		ew.printf("  %-8s %d\n", e, s.Events[e])
	}
	if len(s.HitsByType) > 0 {
		kinds := make([]string, 0, len(s.HitsByType))
		for k := range s.HitsByType {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		ew.println("Hits by type:")
		for _, k := range kinds {
			ew.printf("  %-8s %d\n", k, s.HitsByType[k])
		}
	}
	ew.printf("Tokens avoided (stored estimate): %d\n", s.TokensAvoidedStored)
	if s.First != "" {
		ew.printf("Window: %s .. %s\n", s.First, s.Last)
	}
	if s.MalformedLines > 0 {
		ew.printf("Malformed metrics lines: %d\n", s.MalformedLines)
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
