// Package cache stores reviewer-model responses so that an unchanged
// payload is not sent twice.
//
// Entries are keyed by the model name and a SHA-256 hash of the exact
// payload, and written as JSON files with a creation time and TTL. An
// in-memory LRU sits in front of the directory for repeated lookups in one
// run. The default directory is $XDG_CACHE_HOME/aireview (or the OS
// equivalent). Payloads are redacted before they are hashed or stored.
package cache
