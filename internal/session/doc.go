// Package session keeps per-client key/value bags keyed by an identifier
// carried in the SESSIONID cookie.
//
// The store is sharded: each shard owns a slice of the identifier space
// (murmur3 hash of the identifier) behind its own mutex, and every bag has a
// mutex of its own, so lookups for different clients rarely contend. A store
// with a single shard degenerates to one lock guarding the whole mapping.
//
// Sessions live in memory only and are never expired here.
package session
