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
	"container/list"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type memoryEntry struct {
	key            string
	value          interface{}
	expiresAt      time.Time
	accessCount    uint64
	lastAccessedAt time.Time
}

// MemoryCache is a capacity-bounded in-process cache with per-entry
// expiry and LRU eviction. A single mutex guards the entry map and the
// recency list together so LRU bookkeeping stays consistent with
// capacity enforcement under concurrent access.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	lru      *list.List // front is most recently accessed

	sweepInterval time.Duration
	stopOnce      sync.Once
	stopCh        chan struct{}

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64
}

// NewMemoryCache creates a memory cache bounded to capacity entries,
// swept for expired entries every sweepInterval. Call Start to run the
// sweep loop and Stop to end it.
func NewMemoryCache(capacity int, sweepInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		capacity:      capacity,
		entries:       make(map[string]*list.Element),
		lru:           list.New(),
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the background sweep loop. The loop runs until Stop is
// called or ctx is cancelled.
func (m *MemoryCache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := m.sweep()
				if removed > 0 {
					logrus.Debugf("cache sweep removed %d expired entries", removed)
				}
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the sweep loop. Safe to call more than once.
func (m *MemoryCache) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
	return nil
}

func (m *MemoryCache) SetMany(ctx context.Context, entries map[string]interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range entries {
		m.setLocked(key, value, ttl)
	}
	return nil
}

func (m *MemoryCache) setLocked(key string, value interface{}, ttl time.Duration) {
	now := time.Now()
	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = now.Add(ttl)
		entry.lastAccessedAt = now
		m.lru.MoveToFront(elem)
		return
	}

	if len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}

	entry := &memoryEntry{
		key:            key,
		value:          value,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
	m.entries[key] = m.lru.PushFront(entry)
}

// evictOldestLocked removes the entry with the oldest last access. The
// back of the recency list is that entry because every read moves its
// element to the front.
func (m *MemoryCache) evictOldestLocked() {
	elem := m.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*memoryEntry)
	m.lru.Remove(elem)
	delete(m.entries, entry.key)
	m.evictions++
}

func (m *MemoryCache) Get(ctx context.Context, key string, data interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.getLocked(key)
	if !ok {
		return false, nil
	}
	if err := assign(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryCache) GetMany(ctx context.Context, keys []string) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]interface{})
	for _, key := range keys {
		if value, ok := m.getLocked(key); ok {
			result[key] = value
		}
	}
	return result, nil
}

func (m *MemoryCache) getLocked(key string) (interface{}, bool) {
	elem, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		// Lazy removal so an expired value is never observed.
		m.lru.Remove(elem)
		delete(m.entries, key)
		m.expired++
		m.misses++
		return nil, false
	}
	entry.accessCount++
	entry.lastAccessedAt = time.Now()
	m.lru.MoveToFront(elem)
	m.hits++
	return entry.value, true
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		m.lru.Remove(elem)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid cache key pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, elem := range m.entries {
		if re.MatchString(key) {
			m.lru.Remove(elem)
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryCache) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Size:      len(m.entries),
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		Expired:   m.expired,
	}
	if total := m.hits + m.misses; total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
	}
	return stats, nil
}

// sweep removes every expired entry and returns the count removed. It
// bounds memory even for keys that are never read again.
func (m *MemoryCache) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, elem := range m.entries {
		entry := elem.Value.(*memoryEntry)
		if now.After(entry.expiresAt) {
			m.lru.Remove(elem)
			delete(m.entries, key)
			m.expired++
			removed++
		}
	}
	return removed
}

// assign copies a cached value into the caller's destination pointer.
func assign(dest, value interface{}) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("cache destination must be a non-nil pointer, got %T", dest)
	}
	vv := reflect.ValueOf(value)
	if !vv.IsValid() {
		dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
		return nil
	}
	if !vv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("cannot assign cached %T to destination %T", value, dest)
	}
	dv.Elem().Set(vv)
	return nil
}
