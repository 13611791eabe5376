// Package cache wraps a store.ConfigStore with a Redis read-through cache.
//
// Channel configs are read on every delivery but change rarely, so reads are
// served from Redis for up to TTL after a write or miss. Redis outages never
// fail a read: the backing store is consulted instead.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// DefaultTTL bounds how stale a cached config may be.
const DefaultTTL = 30 * time.Second

const keyPrefix = "switchboard:config:"

// Store is a read-through cache in front of another ConfigStore.
type Store struct {
	next   store.ConfigStore
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ store.ConfigStore = (*Store)(nil)

// New wraps next with a Redis cache. A ttl of 0 uses DefaultTTL.
func New(next store.ConfigStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, redis: client, ttl: ttl, logger: logger}
}

// Connect parses redisURL, verifies connectivity and returns a client.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func cacheKey(instanceName string, channel model.ChannelType) string {
	return keyPrefix + instanceName + ":" + string(channel)
}

func (s *Store) GetChannelConfig(ctx context.Context, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error) {
	key := cacheKey(instanceName, channel)

	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec model.ChannelRecord
		if jerr := json.Unmarshal(data, &rec); jerr == nil {
			return &rec, nil
		}
		s.logger.Warn("cache: dropping corrupt entry", "key", key)
		s.redis.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache: redis read failed", "key", key, "err", err)
	}

	rec, err := s.next.GetChannelConfig(ctx, instanceName, channel)
	if err != nil {
		return nil, err
	}
	s.put(ctx, rec)
	return rec, nil
}

// SetChannelConfig writes through to the backing store, then refreshes the
// cache entry with the stored record.
func (s *Store) SetChannelConfig(ctx context.Context, rec *model.ChannelRecord) error {
	if err := s.next.SetChannelConfig(ctx, rec); err != nil {
		return err
	}
	s.put(ctx, rec)
	return nil
}

// ListChannelConfigs always reads the backing store.
func (s *Store) ListChannelConfigs(ctx context.Context) ([]*model.ChannelRecord, error) {
	return s.next.ListChannelConfigs(ctx)
}

// Close closes the backing store and the Redis client.
func (s *Store) Close() error {
	return errors.Join(s.next.Close(), s.redis.Close())
}

func (s *Store) put(ctx context.Context, rec *model.ChannelRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("cache: marshal failed", "instance", rec.InstanceName, "channel", rec.Channel, "err", err)
		return
	}
	key := cacheKey(rec.InstanceName, rec.Channel)
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		// A stale entry must not outlive a failed refresh.
		s.redis.Del(ctx, key)
		s.logger.Warn("cache: redis write failed", "key", key, "err", err)
	}
}
