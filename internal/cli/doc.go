// Package cli wires together the Cobra command tree for the recall binary.
//
// It defines the root command and all subcommands (key, store, lookup, gc,
// cache, stats, compact, calendar, config, version), binds flags, loads
// configuration, builds the logger, and maps errors to deterministic exit
// codes: 0 success, 2 usage error, 3 configuration or auth error, 4 runtime
// error.
package cli
