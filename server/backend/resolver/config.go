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

package resolver

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for creating a Resolver instance.
type Config struct {
	// KeyServerURL is the base URL of the public key service.
	KeyServerURL string `yaml:"KeyServerURL"`

	// DirectoryURL is the base URL of the identity directory used for
	// display name lookups.
	DirectoryURL string `yaml:"DirectoryURL"`

	// RequestTimeout is the timeout of a single directory request.
	RequestTimeout string `yaml:"RequestTimeout"`

	// CacheSize is the maximum number of entries kept per lookup cache.
	CacheSize int `yaml:"CacheSize"`

	// CacheTTL is the lifespan of a cached lookup result.
	CacheTTL string `yaml:"CacheTTL"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--resolver-request-timeout" flag: %w`,
			c.RequestTimeout,
			err,
		)
	}

	if _, err := time.ParseDuration(c.CacheTTL); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--resolver-cache-ttl" flag: %w`,
			c.CacheTTL,
			err,
		)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf(
			`invalid argument %d for "--resolver-cache-size" flag: must be positive`,
			c.CacheSize,
		)
	}

	return nil
}

// ParseRequestTimeout returns request timeout duration.
func (c *Config) ParseRequestTimeout() time.Duration {
	result, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse request timeout: %w", err)
		os.Exit(1)
	}

	return result
}

// ParseCacheTTL returns cache entry lifespan duration.
func (c *Config) ParseCacheTTL() time.Duration {
	result, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse cache ttl: %w", err)
		os.Exit(1)
	}

	return result
}
