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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapability(t *testing.T) {
	secret := []byte("share-secret")

	t.Run("export and import round-trip", func(t *testing.T) {
		cap, err := MintCapability("share-a", "key-alice", AccessWrite, "", secret)
		assert.NoError(t, err)

		imported, err := ParseCapability(cap.Export())
		assert.NoError(t, err)
		assert.Equal(t, cap.ID, imported.ID)
		assert.Equal(t, "share-a", imported.Share)
		assert.Equal(t, "key-alice", imported.Identity)
		assert.Equal(t, AccessWrite, imported.Level)
		assert.NoError(t, imported.Verify(secret))
	})

	t.Run("tampered token fails verification", func(t *testing.T) {
		cap, err := MintCapability("share-a", "key-alice", AccessRead, "", secret)
		assert.NoError(t, err)

		imported, err := ParseCapability(cap.Export())
		assert.NoError(t, err)
		assert.Error(t, imported.Verify([]byte("other-secret")))
	})

	t.Run("delegation keeps scope", func(t *testing.T) {
		parent, err := MintCapability("share-a", "key-alice", AccessWrite, "", secret)
		assert.NoError(t, err)

		child, err := parent.Delegate("key-bob", AccessRead)
		assert.NoError(t, err)
		assert.Equal(t, "key-bob", child.Identity)
		assert.Equal(t, AccessRead, child.Level)
		assert.Equal(t, parent.ID, child.ParentID)

		imported, err := ParseCapability(child.Export())
		assert.NoError(t, err)
		assert.Equal(t, AccessRead, imported.Level)
		assert.Equal(t, "share-a", imported.Share)
	})

	t.Run("delegation cannot escalate", func(t *testing.T) {
		parent, err := MintCapability("share-a", "key-alice", AccessRead, "", secret)
		assert.NoError(t, err)

		_, err = parent.Delegate("key-bob", AccessWrite)
		assert.ErrorIs(t, err, ErrCapEscalation)
	})

	t.Run("imported capability is not delegable without secret", func(t *testing.T) {
		cap, err := MintCapability("share-a", "key-alice", AccessWrite, "", secret)
		assert.NoError(t, err)

		imported, err := ParseCapability(cap.Export())
		assert.NoError(t, err)

		_, err = imported.Delegate("key-bob", AccessRead)
		assert.ErrorIs(t, err, ErrCapNotDelegable)
	})
}
