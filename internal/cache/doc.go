// Package cache implements the recall result cache.
//
// A cache directory holds:
//
//	index.jsonl      one JSON entry per line, in store order
//	blobs/<id>.json  the redacted {capsule, result_summary} of each entry
//	meta.json        engine limits (TTL defaults, capsule token budget)
//	metrics.jsonl    store/hit/miss/bypass events
//	index.lock       advisory lock serializing index access
//
// Entries are exact (matched by prompt fingerprint and context signature)
// or semantic (matched by cosine similarity of embeddings within the same
// context signature). Store appends; Lookup and GC rewrite the whole index
// through a temp file and rename while holding the lock.
//
// Malformed index lines are skipped on read and dropped by the next rewrite.
// Timestamps that fail to parse are treated as never expiring and are
// written back unchanged.
//
// The default cache directory is $XDG_CACHE_HOME/recall (or the
// OS-appropriate equivalent). Capsules pass through secret redaction before
// they are written.
package cache
