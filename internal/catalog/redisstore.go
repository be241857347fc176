package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/talesofaneria/storefront/internal/domain"
)

// RedisStore keeps cache documents in Redis under
// "aneria:cache:<source>:<key>". Unlike FileStore it holds any number of keys
// per source. Entries carry no Redis TTL: stale entries must stay readable
// for the fallback path.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore using client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "aneria:cache:"}
}

func (s *RedisStore) key(source, key string) string {
	return s.prefix + source + ":" + key
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, source, key string) (domain.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.key(source, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CacheEntry{}, ErrCacheMiss
		}
		return domain.CacheEntry{}, fmt.Errorf("get %s cache from redis: %w", source, err)
	}
	return decodeDocument(source, data)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, source string, entry domain.CacheEntry) error {
	data, err := encodeDocument(source, entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(source, entry.Key), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s cache in redis: %w", source, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, source, key string) error {
	if err := s.client.Del(ctx, s.key(source, key)).Err(); err != nil {
		return fmt.Errorf("delete %s cache in redis: %w", source, err)
	}
	return nil
}

// Clear implements Store. Keys are found with SCAN so large keyspaces do
// not block the server.
func (s *RedisStore) Clear(ctx context.Context, source string) error {
	iter := s.client.Scan(ctx, 0, s.key(source, "*"), 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("clear %s cache in redis: %w", source, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s cache in redis: %w", source, err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("clear %s cache in redis: %w", source, err)
		}
	}
	return nil
}
