// Recall is a local-first semantic result cache for automation agents.
//
// It stores computed capsules keyed by a normalized request plus the files
// that produced them, and serves them back by exact key or by embedding
// similarity, subject to expiry and a size budget.
//
// Usage:
//
//	recall key --prompt "summarize auth flow" --git-changed
//	recall store --type exact --context-signature SIG --prompt-fingerprint FP --capsule out.json
//	recall lookup --prompt "summarize auth flow" --context-signature SIG
//	recall gc --max-mb 100
//	recall stats --prom-textfile /var/lib/node_exporter/recall.prom
//
// Output is JSON by default; pass --format text for a human summary.
package main
