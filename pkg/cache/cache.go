/*
 * Copyright 2025 The Pigeon Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides an expirable LRU cache with hit/miss statistics.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a wrapper over hashicorp's expirable LRU that tracks hit/miss
// counts. Entries expire after the configured TTL; a TTL of zero disables
// expiration.
type LRU[K comparable, V any] struct {
	cache  *expirable.LRU[K, V]
	name   string
	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates a new expirable LRU with the given size and ttl.
func NewLRU[K comparable, V any](size int, ttl time.Duration, name string) *LRU[K, V] {
	return &LRU[K, V]{
		cache: expirable.NewLRU[K, V](size, nil, ttl),
		name:  name,
	}
}

// Get retrieves a value from the cache and updates statistics.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	value, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Add adds a value to the cache.
func (c *LRU[K, V]) Add(key K, value V) {
	c.cache.Add(key, value)
}

// Remove removes a key from the cache.
func (c *LRU[K, V]) Remove(key K) bool {
	return c.cache.Remove(key)
}

// Purge clears all entries from the cache.
func (c *LRU[K, V]) Purge() {
	c.cache.Purge()
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	return c.cache.Len()
}

// Name returns the name given to the cache.
func (c *LRU[K, V]) Name() string {
	return c.name
}

// Hits returns the number of cache hits.
func (c *LRU[K, V]) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of cache misses.
func (c *LRU[K, V]) Misses() int64 {
	return c.misses.Load()
}
