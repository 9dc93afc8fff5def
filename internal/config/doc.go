// Package config loads and merges recall configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (RECALL_CACHE_DIR, RECALL_SIMILARITY_THRESHOLD, etc.)
//  3. Config file ($XDG_CONFIG_HOME/recall/config.json)
//  4. Built-in defaults
//
// Merging is delegated to viper. Use [Load] to obtain a merged [Config],
// [Save] to write a config file, and [SetField] to update a single key.
//
// Engine limits that travel with a cache directory (TTL defaults, capsule
// token budget) live in the cache's own meta.json, not here.
package config
