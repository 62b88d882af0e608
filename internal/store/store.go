// Package store defines the narrow key-value contract the directory is built
// on, plus the backends that satisfy it.
//
// Every server process talks to the same backend; it is the only point of
// synchronization between processes. Implementations must make single-key
// reads and writes atomic and Incr atomic across processes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Get for absent or expired keys.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps transient backend failures. Callers may retry.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is a TTL-aware key-value store with an atomic counter operation.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value. A zero ttl means the key never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key if present and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Incr atomically increments the decimal counter at key and returns the
	// new value. Absent keys start from zero, so the first call returns 1.
	Incr(ctx context.Context, key string) (int64, error)
	// IncrBy is Incr with an arbitrary, possibly negative, delta.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// Expire sets a new ttl on an existing key. It reports false if the key
	// does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Scan returns all live keys starting with prefix, in no particular order.
	Scan(ctx context.Context, prefix string) ([]string, error)
	// Ping checks backend reachability.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
