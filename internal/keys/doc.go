// Package keys derives the stable identifiers used to address cache entries.
//
// A raw prompt is normalized (lowercased, restricted to [a-z0-9 :_/-],
// whitespace collapsed) and hashed into a prompt fingerprint. The files that
// produced a result are snapshotted by path, modification time, and size and
// hashed together with an optional slot into a context signature. The exact
// key binds the normalized prompt, the context signature, and the slot.
//
// All hashes are lowercase hex SHA-256. Every function here is total: empty
// prompts, empty path sets, and empty slots are legal and deterministic.
package keys
