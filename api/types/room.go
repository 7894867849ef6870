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

// RoomKind is the discriminator payload written at the `self` path of a
// share to mark it as a room.
const RoomKind = "town.muni.pigeon.room"

// RoomInfo is the payload of the `self` room-marker document.
type RoomInfo struct {
	Type string `json:"$type"`
}

// CreateRoomOptions are the options of creating a room.
type CreateRoomOptions struct {
	// Name is the explicit room name, if any.
	Name string `json:"name,omitempty"`

	// Alias is the room alias used as the name when Name is empty.
	Alias string `json:"room_alias_name,omitempty" validate:"omitempty,slug"`

	// Invitees are the member identifiers to invite. Invitees whose public
	// key cannot be resolved are dropped with a warning.
	Invitees []string `json:"invite,omitempty"`

	// IsDirect marks the room as a direct-message room.
	IsDirect bool `json:"is_direct,omitempty"`
}

// MessagesDirection is the direction of timeline pagination.
type MessagesDirection string

// Below are the pagination directions.
const (
	DirectionForward  MessagesDirection = "f"
	DirectionBackward MessagesDirection = "b"
)

// MessagesPage is one page of a room's timeline, along with the full,
// non-deduplicated state snapshot and the room's creation timestamp.
type MessagesPage struct {
	Start         string       `json:"start"`
	End           string       `json:"end,omitempty"`
	State         []StateEvent `json:"state"`
	Chunk         []RoomEvent  `json:"chunk"`
	RoomCreatedAt int64        `json:"-"`
}
