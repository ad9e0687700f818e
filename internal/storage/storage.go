// Package storage holds the in-memory keyspace behind the command engine
package storage

import "time"

type ExpiryStatus int

const (
	// ExpNotFound means that the key does not exist
	ExpNotFound ExpiryStatus = -2
	// ExpNoTimeout means that the key exists, but it does not have a TTL
	ExpNoTimeout ExpiryStatus = -1
	// ExpActive means that the key has an active lifetime
	ExpActive ExpiryStatus = 1
)

type SetOptions struct {
	TTL     time.Duration // key lifetime
	KeepTTL bool          // if true, retain the existing TTL (ignore TTL field)
	NX      bool          // only set if the key does not exist
	XX      bool          // only set if the key already exists
}

// Storage is a common interface for working with key-value storages.
// Values are binary safe
type Storage interface {
	// Get returns the value and true if the key is found. Otherwise, "", false
	Get(key string) (string, bool)

	// Set writes the value based on the options. Returns true if recording has been performed
	Set(key, value string, options SetOptions) bool

	// Delete deletes the key. Returns true if the key existed and was deleted
	Delete(key string) bool

	// Exists reports whether the key is present and not expired
	Exists(key string) bool

	// Expiry returns the remaining lifetime and status as ExpiryStatus
	Expiry(key string) (time.Duration, ExpiryStatus)

	// DeleteExpired samples up to limit keys with a TTL per shard, deletes the expired ones
	// and returns the expired/sampled ratio
	DeleteExpired(limit int) float64
}
