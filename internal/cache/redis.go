/*
Copyright 2024 IdleForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	rcache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	redis_db "github.com/idleforge/forge/internal/redis-db"
)

// localCacheSize defines the size of the local cache (in number of
// entries) used alongside Redis.
const localCacheSize = 128000

// RedisCache implements Cache over Redis, for deployments where several
// game nodes must share one view of cached balance reads. It layers a
// local TinyLFU tier over the shared store.
type RedisCache struct {
	cache  *rcache.Cache
	client redis.UniversalClient

	hits   uint64
	misses uint64
}

// NewRedisCache sets up a Redis-backed cache with local caching (TinyLFU).
func NewRedisCache(addresses []string, skipTLSVerify bool) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(addresses, skipTLSVerify)
	if err != nil {
		return nil, err
	}

	c := rcache.New(&rcache.Options{
		Redis:      client.Client(),
		LocalCache: rcache.NewTinyLFU(localCacheSize, 1*time.Minute),
	})

	return &RedisCache{cache: c, client: client.Client()}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.cache.Set(&rcache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, rcache.ErrCacheMiss) {
		atomic.AddUint64(&r.misses, 1)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	atomic.AddUint64(&r.hits, 1)
	return true, nil
}

func (r *RedisCache) SetMany(ctx context.Context, entries map[string]interface{}, ttl time.Duration) error {
	for key, value := range entries {
		if err := r.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisCache) GetMany(ctx context.Context, keys []string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, key := range keys {
		var value interface{}
		found, err := r.Get(ctx, key, &value)
		if err != nil {
			return nil, err
		}
		if found {
			result[key] = value
		}
	}
	return result, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}

// DeleteByPattern scans the keyspace and removes every key matching the
// regular expression. The match is applied client side so the pattern
// semantics stay identical to the memory backend.
func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid cache key pattern %q: %w", pattern, err)
	}

	var removed int64
	iter := r.client.Scan(ctx, 0, "*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !re.MatchString(key) {
			continue
		}
		if err := r.cache.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (r *RedisCache) Stats(ctx context.Context) (Stats, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, err
	}

	hits := atomic.LoadUint64(&r.hits)
	misses := atomic.LoadUint64(&r.misses)
	stats := Stats{
		Size:   int(size),
		Hits:   hits,
		Misses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}
