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

package types

// Member is a participant of a room. A member without a resolvable public
// key cannot be added to a room.
type Member struct {
	// ID is the stable participant identifier (a DID in the original
	// deployment).
	ID string `json:"id"`

	// DisplayName is the resolved display name, if any.
	DisplayName string `json:"displayname,omitempty"`

	// AvatarRef is an opaque reference to the member's avatar, if any.
	AvatarRef string `json:"avatar_url,omitempty"`

	// PublicKey is the member's resolved public key identity.
	PublicKey string `json:"public_key,omitempty"`
}
