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
	"time"
)

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Size      int     `json:"size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Evictions uint64  `json:"evictions"`
	Expired   uint64  `json:"expired"`
}

// Cache provides the operations every component layers its reads on. The
// engine is constructed and injected explicitly so tests can run isolated
// instances, and so a distributed deployment can swap the backing store
// without changing call sites.
type Cache interface {
	// Set stores a value under key with a time-to-live.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get retrieves the value stored under key into data. It returns
	// false when the key is absent or expired; an expired entry is never
	// returned to a caller.
	Get(ctx context.Context, key string, data interface{}) (bool, error)

	// SetMany stores a batch of entries sharing one TTL.
	SetMany(ctx context.Context, entries map[string]interface{}, ttl time.Duration) error

	// GetMany retrieves the subset of keys currently cached. Missing or
	// expired keys are simply absent from the result.
	GetMany(ctx context.Context, keys []string) (map[string]interface{}, error)

	// Delete removes the entry under key, if any.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every entry whose key matches the regular
	// expression and returns the number removed. O(n) over current keys;
	// reserved for explicit invalidation of one subject's cached data.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	// Stats returns a snapshot of the cache counters.
	Stats(ctx context.Context) (Stats, error)
}
