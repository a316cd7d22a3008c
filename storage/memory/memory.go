// Package memory provides an in-process storage.Storage backed by
// github.com/hashicorp/golang-lru/v2 with TTL support.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCleanupInterval is how often expired items are swept.
const DefaultCleanupInterval = 5 * time.Minute

// Storage implements storage.Storage in memory. Least recently used items
// are evicted once the configured capacity is reached.
type Storage struct {
	cache *lru.Cache[string, *storage.Item]
	now   func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// New creates a store holding at most maxItems entries. A background
// goroutine sweeps expired items every interval until Close is called; a
// non-positive interval disables the sweep.
func New(maxItems int, interval time.Duration, opts ...Option) (*Storage, error) {
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	s := &Storage{
		cache: cache,
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if interval > 0 {
		go s.cleanupExpired(interval)
	} else {
		close(s.done)
	}
	return s, nil
}

// Get returns the item under key, or nil when missing or expired.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.Item, error) {
	o := storage.Apply(opts...)
	k := storage.Key(o.Namespace, key)

	item, ok := s.cache.Get(k)
	if !ok {
		return nil, nil
	}
	if item.IsExpired(s.now()) {
		s.cache.Remove(k)
		return nil, nil
	}
	return copyItem(item), nil
}

// Set stores a copy of data under key.
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	o := storage.Apply(opts...)

	now := s.now()
	item := &storage.Item{
		Data:     append([]byte(nil), data...),
		StoredAt: now,
	}
	if o.TTL != nil && *o.TTL > 0 {
		exp := now.Add(*o.TTL)
		item.ExpiresAt = &exp
	}

	s.cache.Add(storage.Key(o.Namespace, key), item)
	return nil
}

// Delete removes key.
func (s *Storage) Delete(ctx context.Context, key string, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	s.cache.Remove(storage.Key(o.Namespace, key))
	return nil
}

// Len reports the number of stored items, expired ones included until they
// are swept.
func (s *Storage) Len() int { return s.cache.Len() }

// Close stops the sweeper and drops every item. It is safe to call more
// than once.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.cache.Purge()
	})
	return nil
}

func (s *Storage) cleanupExpired(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Storage) sweep() {
	now := s.now()
	for _, key := range s.cache.Keys() {
		if item, ok := s.cache.Peek(key); ok && item.IsExpired(now) {
			s.cache.Remove(key)
		}
	}
}

func copyItem(it *storage.Item) *storage.Item {
	c := *it
	c.Data = append([]byte(nil), it.Data...)
	return &c
}

var _ storage.Storage = (*Storage)(nil)
