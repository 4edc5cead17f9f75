// Package store declares the ordered key-value capability the terrain
// engine is built on. Implementations must iterate keys in ascending
// lexicographic order and apply batches atomically; everything else
// (compaction, write-ahead logging, on-disk format) is their own
// concern.
package store

import "errors"

// ErrNotFound is returned by Get when a key is absent. Absence is a
// normal outcome, distinct from store failure; callers check it with
// errors.Is.
var ErrNotFound = errors.New("store: key not found")

// KV is the durable ordered store handle. Individual operations are
// safe for concurrent use; there is no cross-call transaction isolation.
type KV interface {
	// Put upserts a key. durable requests fsync-level durability
	// before returning.
	Put(key, value string, durable bool) error

	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string, durable bool) error

	// Exists reports key presence without returning the value.
	Exists(key string) (bool, error)

	// NewBatch stages writes for one atomic, all-or-nothing commit.
	NewBatch() Batch

	// RangeScan visits records with start <= key < end in ascending
	// key order. An empty end means unbounded. A non-nil error from
	// visit stops the scan and is returned.
	RangeScan(start, end string, visit func(key, value string) error) error

	// PrefixScan visits every record whose key begins with prefix,
	// in ascending key order.
	PrefixScan(prefix string, visit func(key, value string) error) error

	// Close releases the store. Operations after Close fail.
	Close() error
}

// Batch stages puts and deletes; nothing is visible until Commit, which
// applies everything or nothing.
type Batch interface {
	Put(key, value string)
	Delete(key string)
	Commit(durable bool) error
	Reset()
}
