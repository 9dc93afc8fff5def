// Package redact removes secrets from payloads before they are persisted to
// the cache or appended to memory files.
//
// Detection uses regex heuristics covering common secret shapes: key/value
// assignments (api_key=..., password: ...), bearer tokens, AWS access key IDs
// and secret access keys, PEM private-key blocks, JWTs, and provider-specific
// tokens (Slack, GitHub, Anthropic, OpenAI). Extra patterns can be supplied
// from configuration. Every match is replaced with [REDACTED].
//
// Structured payloads are redacted as a decoded JSON tree rather than as
// serialized text: string leaves are scrubbed and string values stored under
// sensitive keys such as "password" or "api_key" are replaced whole.
//
// Redaction is best-effort pattern matching and is not a security boundary.
// Secrets whose shape no pattern recognizes are stored as-is.
//
// Path-based redaction is also supported: files whose paths match configured
// glob patterns have their entire content replaced with [REDACTED].
package redact
