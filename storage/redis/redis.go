// Package redis provides a storage.Storage backed by Redis, letting several
// processes share cached documents with native key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is prepended to every key when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "okta-jwt:"

// Config contains configuration options for the Redis storage
type Config struct {
	// Client is the Redis client instance
	Client redis.UniversalClient

	// KeyPrefix is the prefix for all Redis keys
	// Default: "okta-jwt:"
	KeyPrefix string
}

// Storage implements the storage.Storage interface using Redis
type Storage struct {
	client    redis.UniversalClient
	keyPrefix string
}

// storedItem is the JSON envelope written to Redis.
type storedItem struct {
	Data      []byte     `json:"data"`
	StoredAt  time.Time  `json:"stored_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New creates a new Redis-based storage instance.
func New(config Config) (*Storage, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	return &Storage{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Dial connects to the Redis server at addr and verifies it with PING.
func Dial(ctx context.Context, addr, keyPrefix string) (*Storage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(Config{Client: client, KeyPrefix: keyPrefix})
}

// Get returns the item under key, or nil when missing or expired.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.Item, error) {
	o := storage.Apply(opts...)
	redisKey := s.buildKey(o.Namespace, key)

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", redisKey, err)
	}

	var item storedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored data: %w", err)
	}

	out := &storage.Item{
		Data:      item.Data,
		StoredAt:  item.StoredAt,
		ExpiresAt: item.ExpiresAt,
	}
	// Expiry is checked locally as well as by Redis.
	if out.IsExpired(time.Now()) {
		s.client.Del(ctx, redisKey)
		return nil, nil
	}
	return out, nil
}

// Set stores data under key with the Redis TTL set from WithTTL.
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	redisKey := s.buildKey(o.Namespace, key)

	now := time.Now()
	item := storedItem{Data: data, StoredAt: now}

	var ttl time.Duration
	if o.TTL != nil && *o.TTL > 0 {
		exp := now.Add(*o.TTL)
		item.ExpiresAt = &exp
		ttl = *o.TTL
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal storage item: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", redisKey, err)
	}
	return nil
}

// Delete removes key.
func (s *Storage) Delete(ctx context.Context, key string, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	redisKey := s.buildKey(o.Namespace, key)
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", redisKey, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) buildKey(ns, key string) string {
	return s.keyPrefix + storage.Key(ns, key)
}

var _ storage.Storage = (*Storage)(nil)
