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

package peers

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidBridgeURL occurs when the bridge URL in the config is not a
// websocket URL.
var ErrInvalidBridgeURL = errors.New("invalid bridge url")

// Config is the configuration for connecting to the peer-connection bridge.
type Config struct {
	// BridgeURL is the websocket URL of the process that owns the actual
	// peer connections. Empty disables peer networking.
	BridgeURL string `yaml:"BridgeURL"`
}

// Validate validates the bridge URL when one is given.
func (c *Config) Validate() error {
	if c.BridgeURL == "" {
		return nil
	}

	parsed, err := url.Parse(c.BridgeURL)
	if err != nil {
		return fmt.Errorf("parse %q: %w", c.BridgeURL, ErrInvalidBridgeURL)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, given %q: %w", c.BridgeURL, ErrInvalidBridgeURL)
	}

	return nil
}
