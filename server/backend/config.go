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

package backend

import (
	"errors"
	"fmt"
)

// ErrIncompleteIdentity occurs when only one of MemberID and PublicKey is
// configured.
var ErrIncompleteIdentity = errors.New("incomplete identity")

// Config is the configuration for creating a Backend instance.
type Config struct {
	// MemberID is the stable participant identifier of the local identity,
	// such as "@alice". Leaving the identity empty starts the daemon without
	// an active session; room operations then fail until one is set.
	MemberID string `yaml:"MemberID"`

	// PublicKey is the public key capabilities are scoped to.
	PublicKey string `yaml:"PublicKey"`
}

// Validate checks that the identity is either fully given or fully absent.
func (c *Config) Validate() error {
	if (c.MemberID == "") != (c.PublicKey == "") {
		return fmt.Errorf(
			"MemberID and PublicKey must be set together: %w",
			ErrIncompleteIdentity,
		)
	}

	return nil
}
