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

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/muni-town/pigeon/pkg/cache"
)

func TestLRU(t *testing.T) {
	t.Run("add and get", func(t *testing.T) {
		c := cache.NewLRU[string, string](10, time.Minute, "test")

		c.Add("a", "1")
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "1", v)
		assert.Equal(t, int64(1), c.Hits())

		_, ok = c.Get("b")
		assert.False(t, ok)
		assert.Equal(t, int64(1), c.Misses())
	})

	t.Run("eviction by size", func(t *testing.T) {
		c := cache.NewLRU[int, int](2, time.Minute, "test")

		c.Add(1, 1)
		c.Add(2, 2)
		c.Add(3, 3)
		assert.Equal(t, 2, c.Len())

		_, ok := c.Get(1)
		assert.False(t, ok)
	})

	t.Run("purge", func(t *testing.T) {
		c := cache.NewLRU[string, int](10, time.Minute, "test")

		c.Add("a", 1)
		c.Purge()
		assert.Equal(t, 0, c.Len())
	})
}
