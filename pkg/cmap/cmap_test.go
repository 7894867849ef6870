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

package cmap_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muni-town/pigeon/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cmap.New[int]()

		m.Set("a", 1)
		v, exists := m.Get("a")
		assert.True(t, exists)
		assert.Equal(t, 1, v)

		v, exists = m.Get("b")
		assert.False(t, exists)
		assert.Equal(t, 0, v)
	})

	t.Run("delete", func(t *testing.T) {
		m := cmap.New[int]()

		m.Set("a", 1)
		assert.True(t, m.Delete("a"))
		assert.False(t, m.Delete("a"))
		assert.Equal(t, 0, m.Len())
	})

	t.Run("values and len", func(t *testing.T) {
		m := cmap.New[int]()

		for i := 0; i < 10; i++ {
			m.Set(fmt.Sprintf("key-%d", i), i)
		}
		assert.Equal(t, 10, m.Len())
		assert.Len(t, m.Values(), 10)
		assert.Len(t, m.Keys(), 10)
	})

	t.Run("concurrent access", func(t *testing.T) {
		m := cmap.New[int]()

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("key-%d", i)
				m.Set(key, i)
				v, exists := m.Get(key)
				assert.True(t, exists)
				assert.Equal(t, i, v)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 100, m.Len())
	})
}
