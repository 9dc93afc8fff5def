// Package output renders recall command results for display or machine
// consumption.
//
// Two formats are supported:
//   - json: indented JSON with snake_case keys (default, stable for scripts)
//   - text: human-readable terminal output
//
// Use [GetWriter] to obtain a [Writer] for a given format string, or [Print]
// to render directly. Result types without a text rendering fall back to JSON.
package output
