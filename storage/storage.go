// Package storage defines the durable key/value persistence used to mirror
// session state across restarts.
package storage

import "context"

// Store is a string key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes every entry in values. Backends that can apply the batch
	// atomically do so.
	Set(ctx context.Context, values map[string]string) error

	// Remove deletes keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}
