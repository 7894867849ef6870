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

// Package cmap provides a concurrent map keyed by string.
package cmap

import (
	"hash/fnv"
	"sync"
)

// numShards is the number of shards.
const numShards = 16

type shard[V any] struct {
	sync.RWMutex
	items map[string]V
}

// Map is a concurrent map that is safe for use from multiple goroutines. It
// is sharded to reduce lock contention.
type Map[V any] struct {
	shards [numShards]shard[V]
}

// New creates a new Map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := 0; i < numShards; i++ {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shardForKey(key string) *shard[V] {
	hash := fnv.New32a()
	// fnv's Write never returns an error.
	_, _ = hash.Write([]byte(key))
	return &m.shards[hash.Sum32()%numShards]
}

// Set sets a key-value pair.
func (m *Map[V]) Set(key string, value V) {
	shard := m.shardForKey(key)

	shard.Lock()
	defer shard.Unlock()

	shard.items[key] = value
}

// Get retrieves the value for the given key.
func (m *Map[V]) Get(key string) (V, bool) {
	shard := m.shardForKey(key)

	shard.RLock()
	defer shard.RUnlock()

	value, exists := shard.items[key]
	return value, exists
}

// Delete removes the value for the given key and returns whether it existed.
func (m *Map[V]) Delete(key string) bool {
	shard := m.shardForKey(key)

	shard.Lock()
	defer shard.Unlock()

	_, exists := shard.items[key]
	delete(shard.items, key)
	return exists
}

// Values returns a snapshot of the values in the map.
func (m *Map[V]) Values() []V {
	var values []V
	for i := 0; i < numShards; i++ {
		shard := &m.shards[i]
		shard.RLock()
		for _, value := range shard.items {
			values = append(values, value)
		}
		shard.RUnlock()
	}
	return values
}

// Keys returns a snapshot of the keys in the map.
func (m *Map[V]) Keys() []string {
	var keys []string
	for i := 0; i < numShards; i++ {
		shard := &m.shards[i]
		shard.RLock()
		for key := range shard.items {
			keys = append(keys, key)
		}
		shard.RUnlock()
	}
	return keys
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int {
	count := 0
	for i := 0; i < numShards; i++ {
		shard := &m.shards[i]
		shard.RLock()
		count += len(shard.items)
		shard.RUnlock()
	}
	return count
}
