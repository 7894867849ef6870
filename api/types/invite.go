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

// Invite pairs a recipient identity with exported read and write
// capabilities for one room. It is delivered out-of-band and consumed
// exactly once by the invited party.
type Invite struct {
	// ID identifies the invite.
	ID string `json:"id"`

	// Room is the identifier of the room the invite grants access to.
	Room string `json:"room"`

	// Recipient is the identifier of the invited member.
	Recipient string `json:"recipient"`

	// ReadCap is the exported read capability.
	ReadCap []byte `json:"read_cap"`

	// WriteCap is the exported write capability.
	WriteCap []byte `json:"write_cap"`

	// CreatedAt is the creation time in milliseconds since the epoch.
	CreatedAt int64 `json:"created_at"`
}
