package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "playdeck:snapshot:"

// RedisSnapshotStore keeps one string key per version token. Entries never expire.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore wraps an existing client.
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

// OpenRedisSnapshotStore parses rawURL (redis://host:port/db), connects and pings the server.
func OpenRedisSnapshotStore(ctx context.Context, rawURL string) (*RedisSnapshotStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisSnapshotStore(client), nil
}

func (s *RedisSnapshotStore) Close() error { return s.client.Close() }

func (s *RedisSnapshotStore) key(snapshotID string) string { return redisKeyPrefix + snapshotID }

func (s *RedisSnapshotStore) Has(ctx context.Context, snapshotID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(snapshotID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(snapshotID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cacheMiss(snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(snapshotID, data)
}

// Store writes the entry with a single SET.
func (s *RedisSnapshotStore) Store(ctx context.Context, snapshotID string, snap *models.Snapshot) error {
	data, err := encodeSnapshot(snapshotID, snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(snapshotID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Invalidate(ctx context.Context, snapshotID string) error {
	if err := s.client.Del(ctx, s.key(snapshotID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Info(ctx context.Context) (CacheInfo, error) {
	info := CacheInfo{Backend: "redis", Location: s.client.Options().Addr}
	keys, err := s.keys(ctx)
	if err != nil {
		return CacheInfo{}, err
	}
	for _, k := range keys {
		n, err := s.client.StrLen(ctx, k).Result()
		if err != nil {
			return CacheInfo{}, fmt.Errorf("failed to measure %s: %w", k, err)
		}
		info.Entries++
		info.Bytes += n
	}
	return info, nil
}

func (s *RedisSnapshotStore) Clear(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return int(n), nil
}

func (s *RedisSnapshotStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	return keys, nil
}
