// Package metrics records cache events as an append-only JSON-lines log and
// summarizes that log, optionally as a Prometheus textfile for the
// node-exporter textfile collector.
//
// The engine only writes the log. [Summarize] is for operators and
// the stats command.
package metrics
