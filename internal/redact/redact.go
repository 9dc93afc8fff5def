package redact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Placeholder replaces every detected secret. It never matches a pattern.
const Placeholder = "[REDACTED]"

// DefaultPatterns are regex heuristics for common secret shapes, applied in order.
var DefaultPatterns = []string{
	// PEM private key blocks, header through footer
	`(?i)-----BEGIN (RSA |EC |OPENSSH |PGP |DSA )?PRIVATE KEY-----[\s\S]+?-----END (RSA |EC |OPENSSH |PGP |DSA )?PRIVATE KEY-----`,
	// Bare private key headers left without a footer
	`-----BEGIN\s+(RSA\s+)?PRIVATE KEY-----`,
	// AWS secret access keys
	`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`,
	// Generic key/value assignments
	`(?i)(api[_-]?key|token|secret|password|passwd)\s*[:=]\s*[^\s"'\[][^\s"']*`,
	// Bearer tokens
	`(?i)bearer\s+[a-z0-9._-]+`,
	// AWS access key IDs
	`AKIA[0-9A-Z]{16}`,
	// JWTs (three base64 segments separated by dots)
	`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`,
	// Slack tokens
	`xox[baprs]-[A-Za-z0-9-]{10,}`,
	// GitHub tokens
	`gh[pousr]_[A-Za-z0-9]{20,}`,
	// Anthropic API keys
	`sk-ant-[A-Za-z0-9_-]{20,}`,
	// OpenAI API keys
	`sk-[A-Za-z0-9]{20,}`,
}

// sensitiveKey matches object keys whose string values are replaced whole.
var sensitiveKey = regexp.MustCompile(`(?i)^(api[_-]?key|apikey|api[_-]?secret|access[_-]?token|refresh[_-]?token|token|secret|client[_-]?secret|password|passwd|private[_-]?key)$`)

// Redactor scrubs secret-shaped substrings from text and JSON trees.
// Detection is best-effort pattern matching and is not a security boundary:
// secrets with unrecognized shapes pass through unchanged.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles DefaultPatterns followed by any extra patterns.
func New(extra ...string) (*Redactor, error) {
	all := append(append([]string{}, DefaultPatterns...), extra...)
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(all))}
	for _, p := range all {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling redaction pattern %q: %w", p, err)
		}
		if re.MatchString(Placeholder) {
			return nil, fmt.Errorf("redaction pattern %q matches the placeholder", p)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

var defaultRedactor = mustDefault()

func mustDefault() *Redactor {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a Redactor using DefaultPatterns only.
func Default() *Redactor { return defaultRedactor }

// Secrets replaces detected secrets in text with [REDACTED].
func (r *Redactor) Secrets(text string) string {
	result := text
	for _, pat := range r.patterns {
		result = pat.ReplaceAllLiteralString(result, Placeholder)
	}
	return result
}

// Secrets redacts text with the default patterns.
func Secrets(text string) string {
	return defaultRedactor.Secrets(text)
}

// Value returns a redacted copy of a decoded JSON tree. String leaves are
// scrubbed; string values under sensitive object keys are replaced whole.
// Object keys, numbers, booleans, and nulls are left untouched.
func (r *Redactor) Value(v any) any {
	switch t := v.(type) {
	case string:
		return r.Secrets(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && s != "" && sensitiveKey.MatchString(k) {
				out[k] = Placeholder
				continue
			}
			out[k] = r.Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.Value(val)
		}
		return out
	default:
		return v
	}
}

// Payload redacts a raw JSON document and re-encodes it compactly. Numbers
// keep their original literal form.
func (r *Redactor) Payload(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Value(v)); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// Also try matching just the filename for patterns like "**/.env"
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			base := filepath.Base(path)
			matched, err = filepath.Match(cleanPattern, base)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Content redacts secrets from content and redacts the entire content if the
// file path matches redaction patterns.
func (r *Redactor) Content(content, path string, redactPaths []string) string {
	if ShouldRedactPath(path, redactPaths) {
		return Placeholder + " (file content redacted by path policy)\n"
	}
	return r.Secrets(content)
}
