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

package store

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// Capability grants an identity read or write access to a share. It is
// exportable as a signed token and delegable to another identity with the
// same or narrower access.
type Capability struct {
	// ID identifies the capability.
	ID string

	// Share is the tag of the share the capability grants access to.
	Share string

	// Identity is the identity (public key) the capability is scoped to.
	Identity string

	// Level is the granted access level.
	Level AccessLevel

	// ParentID is the id of the capability this one was delegated from, if
	// any.
	ParentID string

	// token is the compact signed serialization.
	token string

	// secret is the share's signing secret when locally known. Without it
	// the capability cannot delegate.
	secret []byte
}

// MintCapability builds and signs a capability with the given share secret.
func MintCapability(share, identity string, level AccessLevel, parentID string, secret []byte) (*Capability, error) {
	id := xid.New().String()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":    id,
		"sub":    identity,
		"share":  share,
		"lvl":    string(level),
		"parent": parentID,
	}).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("sign capability: %w", err)
	}

	return &Capability{
		ID:       id,
		Share:    share,
		Identity: identity,
		Level:    level,
		ParentID: parentID,
		token:    token,
		secret:   secret,
	}, nil
}

// Delegate creates a capability scoped to the given grantee with the given
// access level. The level may never be broader than this capability's.
func (c *Capability) Delegate(granteeKey string, level AccessLevel) (*Capability, error) {
	if c.secret == nil {
		return nil, ErrCapNotDelegable
	}
	if level.rank() > c.Level.rank() {
		return nil, fmt.Errorf("delegate %s from %s: %w", level, c.Level, ErrCapEscalation)
	}

	return MintCapability(c.Share, granteeKey, level, c.ID, c.secret)
}

// Export returns the capability as an opaque byte blob suitable for
// out-of-band delivery.
func (c *Capability) Export() []byte {
	return []byte(c.token)
}

// ParseCapability parses an exported capability without verifying its
// signature. Verification requires the share secret, which the importing
// side may not hold; the token is kept so the signature can be checked later
// with Verify.
func ParseCapability(raw []byte) (*Capability, error) {
	token, _, err := jwt.NewParser().ParseUnverified(string(raw), jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse capability: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse capability: unexpected claims type")
	}

	parsed := &Capability{token: string(raw)}
	if parsed.ID, ok = claims["jti"].(string); !ok {
		return nil, fmt.Errorf("parse capability: missing id")
	}
	if parsed.Share, ok = claims["share"].(string); !ok {
		return nil, fmt.Errorf("parse capability: missing share")
	}
	if parsed.Identity, ok = claims["sub"].(string); !ok {
		return nil, fmt.Errorf("parse capability: missing identity")
	}
	level, ok := claims["lvl"].(string)
	if !ok {
		return nil, fmt.Errorf("parse capability: missing level")
	}
	parsed.Level = AccessLevel(level)
	parsed.ParentID, _ = claims["parent"].(string)

	return parsed, nil
}

// Verify checks the capability's signature against the given share secret.
func (c *Capability) Verify(secret []byte) error {
	_, err := jwt.Parse(c.token, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return fmt.Errorf("verify capability %s: %w", c.ID, err)
	}
	return nil
}

// AdoptSecret attaches a locally known share secret, enabling delegation.
func (c *Capability) AdoptSecret(secret []byte) {
	c.secret = secret
}

// Token returns the compact signed serialization.
func (c *Capability) Token() string {
	return c.token
}
