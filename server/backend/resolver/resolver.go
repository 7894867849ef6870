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

// Package resolver looks up member public keys and display names against an
// identity directory. Lookups are best-effort: an unresolvable member yields
// a miss, never an error.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/muni-town/pigeon/pkg/cache"
	"github.com/muni-town/pigeon/server/logging"
)

// Resolver resolves member identities against a directory service. Caches
// are injected and explicitly scoped to the resolver instance rather than
// kept process-global.
type Resolver struct {
	conf   *Config
	client *http.Client

	keyCache  *cache.LRU[string, string]
	nameCache *cache.LRU[string, string]
}

// New creates a new instance of Resolver with the given caches.
func New(
	conf *Config,
	keyCache *cache.LRU[string, string],
	nameCache *cache.LRU[string, string],
) *Resolver {
	return &Resolver{
		conf: conf,
		client: &http.Client{
			Timeout: conf.ParseRequestTimeout(),
		},
		keyCache:  keyCache,
		nameCache: nameCache,
	}
}

// ResolvePublicKey returns the public key of the given member, or false when
// the member cannot be resolved.
func (r *Resolver) ResolvePublicKey(ctx context.Context, memberID string) (string, bool) {
	if key, ok := r.keyCache.Get(memberID); ok {
		return key, true
	}

	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if err := r.fetch(ctx, r.conf.KeyServerURL, "keys", memberID, &body); err != nil {
		logging.From(ctx).Warnf("resolve public key of %s: %v", memberID, err)
		return "", false
	}
	if body.PublicKey == "" {
		return "", false
	}

	r.keyCache.Add(memberID, body.PublicKey)
	return body.PublicKey, true
}

// ResolveDisplayName returns the display name of the given member, or false
// when the member cannot be resolved.
func (r *Resolver) ResolveDisplayName(ctx context.Context, memberID string) (string, bool) {
	if name, ok := r.nameCache.Get(memberID); ok {
		return name, true
	}

	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := r.fetch(ctx, r.conf.DirectoryURL, "profiles", memberID, &body); err != nil {
		logging.From(ctx).Warnf("resolve display name of %s: %v", memberID, err)
		return "", false
	}
	if body.DisplayName == "" {
		return "", false
	}

	r.nameCache.Add(memberID, body.DisplayName)
	return body.DisplayName, true
}

func (r *Resolver) fetch(ctx context.Context, base, kind, memberID string, out any) error {
	endpoint, err := url.JoinPath(base, kind, url.PathEscape(memberID))
	if err != nil {
		return fmt.Errorf("build %s url: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", kind, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", kind, err)
	}
	return nil
}
