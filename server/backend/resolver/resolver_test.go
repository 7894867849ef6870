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

package resolver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/muni-town/pigeon/pkg/cache"
	"github.com/muni-town/pigeon/server/backend/resolver"
)

func setUpResolver(t *testing.T, handler http.Handler) (*resolver.Resolver, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return resolver.New(
		&resolver.Config{
			KeyServerURL:   server.URL,
			DirectoryURL:   server.URL,
			RequestTimeout: "1s",
			CacheSize:      16,
			CacheTTL:       "1m",
		},
		cache.NewLRU[string, string](16, time.Minute, "keys"),
		cache.NewLRU[string, string](16, time.Minute, "names"),
	), server
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("resolve and cache test", func(t *testing.T) {
		var hits atomic.Int64
		r, _ := setUpResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			hits.Add(1)
			switch req.URL.Path {
			case "/keys/alice":
				fmt.Fprint(w, `{"publicKey":"key-alice"}`)
			case "/profiles/alice":
				fmt.Fprint(w, `{"displayName":"Alice"}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))

		key, ok := r.ResolvePublicKey(ctx, "alice")
		assert.True(t, ok)
		assert.Equal(t, "key-alice", key)

		name, ok := r.ResolveDisplayName(ctx, "alice")
		assert.True(t, ok)
		assert.Equal(t, "Alice", name)

		// Repeated lookups are served from the cache.
		_, _ = r.ResolvePublicKey(ctx, "alice")
		_, _ = r.ResolveDisplayName(ctx, "alice")
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("unresolvable member test", func(t *testing.T) {
		r, _ := setUpResolver(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, ok := r.ResolvePublicKey(ctx, "ghost")
		assert.False(t, ok)
		_, ok = r.ResolveDisplayName(ctx, "ghost")
		assert.False(t, ok)
	})

	t.Run("empty response is a miss test", func(t *testing.T) {
		r, _ := setUpResolver(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{}`)
		}))

		_, ok := r.ResolvePublicKey(ctx, "alice")
		assert.False(t, ok)
	})
}
