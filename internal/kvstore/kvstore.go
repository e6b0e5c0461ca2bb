// Package kvstore provides the durable string-keyed persistence substrate
// the offline queue rides on. The queue store treats it as a plain
// get/set/remove blob store and never assumes atomic read-modify-write.
package kvstore

import "errors"

// Store is a string-keyed blob store.
//
// Get returns found=false (not an error) when the key has never been written,
// so callers can treat an empty store as an empty collection.
type Store interface {
	// Get retrieves the value for a key.
	Get(key string) (value string, found bool, err error)

	// Set writes the value for a key, replacing any previous value.
	Set(key, value string) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrClosed = errors.New("kvstore: store is closed")
)
