// Package storage defines the key/value contract used to cache upstream
// documents, such as an issuer's key set, across verifier instances and
// process restarts.
package storage

import (
	"context"
	"time"
)

// Storage is a byte-oriented key/value store with optional expiry.
type Storage interface {
	// Get returns the item stored under key. A missing or expired item is
	// reported as (nil, nil); errors are reserved for backend failures.
	Get(ctx context.Context, key string, opts ...Option) (*Item, error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string, opts ...Option) error

	// Close releases the backend's resources.
	Close() error
}

// Item is a stored value and its metadata.
type Item struct {
	Data      []byte
	StoredAt  time.Time
	ExpiresAt *time.Time // nil means no expiry
}

// IsExpired reports whether the item has expired at now.
func (i *Item) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// TTL returns the time left before expiry at now, or zero when the item
// never expires.
func (i *Item) TTL(now time.Time) time.Duration {
	if i.ExpiresAt == nil {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

// Option configures a single storage operation.
type Option func(*Options)

// Options is the resolved form of a set of Option values.
type Options struct {
	Namespace string         // empty means the global namespace
	TTL       *time.Duration // nil means no expiry
}

// Apply resolves opts.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithNamespace scopes the operation to ns.
func WithNamespace(ns string) Option {
	return func(o *Options) { o.Namespace = ns }
}

// WithTTL expires the stored value after ttl. Non-positive values are
// ignored by Set.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) { o.TTL = &ttl }
}

// Key joins a namespace and key into the flat form used by backends.
func Key(ns, key string) string {
	if ns == "" {
		return "global:" + key
	}
	return "ns:" + ns + ":" + key
}
