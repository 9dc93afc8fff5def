package keys

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// separator joins the parts of an exact key before hashing.
const separator = "||"

// FileSnapshot records the state of one context file at signature time.
type FileSnapshot struct {
	Path  string  `json:"path"`
	Mtime float64 `json:"mtime"`
	Size  int64   `json:"size"`
}

// Derived holds every key derived for a prompt and its context.
type Derived struct {
	NormalizedPrompt  string         `json:"normalized_prompt"`
	PromptFingerprint string         `json:"prompt_fingerprint"`
	ContextSignature  string         `json:"context_signature"`
	ExactKey          string         `json:"exact_key"`
	SourceFiles       []FileSnapshot `json:"source_files"`
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// Normalize lowercases the prompt, drops every character outside
// [a-z0-9 :_/-], and collapses whitespace runs to a single space.
func Normalize(prompt string) string {
	var b strings.Builder
	b.Grow(len(prompt))
	for _, r := range strings.ToLower(prompt) {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ':', r == '_', r == '/', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fingerprint hashes the normalized prompt.
func Fingerprint(prompt string) string {
	return HashKey(Normalize(prompt))
}

// ExactKey binds the normalized prompt to a context signature and slot.
func ExactKey(prompt, contextSignature, slot string) string {
	return HashKey(Normalize(prompt) + separator + contextSignature + separator + slot)
}

// signaturePayload is serialized with keys in sorted order: files, slot.
type signaturePayload struct {
	Files []FileSnapshot `json:"files"`
	Slot  string         `json:"slot"`
}

// ContextSignature snapshots the distinct regular files among paths, sorted by
// path, and hashes them together with slot. Paths that do not exist or are
// not regular files are dropped.
func ContextSignature(paths []string, slot string) (string, []FileSnapshot) {
	files := Snapshot(paths)
	raw, err := json.Marshal(signaturePayload{Files: files, Slot: slot})
	if err != nil {
		// Only finite floats, strings, and ints are marshaled here.
		panic(fmt.Sprintf("keys: marshaling signature payload: %v", err))
	}
	return HashKey(string(raw)), files
}

// Snapshot stats the distinct regular files among paths and returns them
// sorted by path. The result is never nil.
func Snapshot(paths []string) []FileSnapshot {
	seen := make(map[string]bool, len(paths))
	var unique []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	sort.Strings(unique)

	files := make([]FileSnapshot, 0, len(unique))
	for _, p := range unique {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileSnapshot{
			Path:  p,
			Mtime: float64(info.ModTime().UnixNano()) / 1e9,
			Size:  info.Size(),
		})
	}
	return files
}

// Derive computes the normalized prompt, fingerprint, context signature, and
// exact key in one call.
func Derive(prompt, slot string, paths []string) Derived {
	sig, files := ContextSignature(paths, slot)
	return Derived{
		NormalizedPrompt:  Normalize(prompt),
		PromptFingerprint: Fingerprint(prompt),
		ContextSignature:  sig,
		ExactKey:          ExactKey(prompt, sig, slot),
		SourceFiles:       files,
	}
}
