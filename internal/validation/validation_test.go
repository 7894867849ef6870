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

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	type form struct {
		Alias string `validate:"omitempty,slug"`
		Limit int    `validate:"min=0"`
	}

	t.Run("valid struct", func(t *testing.T) {
		assert.NoError(t, Validate(&form{Alias: "my-room.1", Limit: 10}))
	})

	t.Run("empty alias is allowed", func(t *testing.T) {
		assert.NoError(t, Validate(&form{}))
	})

	t.Run("invalid slug", func(t *testing.T) {
		err := Validate(&form{Alias: "No Spaces Allowed"})
		assert.Error(t, err)

		formErr, ok := err.(*FormError)
		assert.True(t, ok)
		assert.Equal(t, "slug", formErr.Violations[0].Tag)
	})

	t.Run("negative limit", func(t *testing.T) {
		assert.Error(t, Validate(&form{Limit: -1}))
	})
}
