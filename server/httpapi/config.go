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

// Package httpapi exposes the room operations as a Matrix-compatible REST
// surface for chat clients.
package httpapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIPort occurs when the port in the config is invalid.
	ErrInvalidAPIPort = errors.New("invalid port number for api server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the listen port of the API server.
	Port int `yaml:"Port"`

	// AccessToken is the bearer token accepted by the API. Requests with a
	// different token are rejected with M_UNKNOWN_TOKEN.
	AccessToken string `yaml:"AccessToken"`
}

// Validate validates the port number.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidAPIPort)
	}

	return nil
}
