// Package store provides the bot's persistent key-value settings storage.
// Values are arbitrary JSON-encodable structures keyed by string; backends
// are selected at startup and hidden behind the KV interface.
package store

import "context"

// KV is the persistence interface the bot depends on.
// All implementations encode values as JSON.
type KV interface {
	// Get decodes the value stored under key into dest. It returns false
	// (and leaves dest untouched) when the key has never been set.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
