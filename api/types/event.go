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

// EventType is the type of a room event.
type EventType string

// Below are the event types written by the room mapper.
const (
	EventRoomCreate  EventType = "m.room.create"
	EventRoomMember  EventType = "m.room.member"
	EventRoomName    EventType = "m.room.name"
	EventRoomMessage EventType = "m.room.message"
)

// Membership is the membership state of a member in a room. Transitions only
// move forward: absent, joined, then left, resolved by timestamp order.
type Membership string

// Below are the membership states carried by m.room.member events.
const (
	MembershipJoin  Membership = "join"
	MembershipLeave Membership = "leave"
)

// RoomEvent is a single timeline event of a room.
type RoomEvent struct {
	EventID        string                 `json:"event_id"`
	Type           EventType              `json:"type"`
	Sender         string                 `json:"sender"`
	OriginServerTS int64                  `json:"origin_server_ts"`
	Content        map[string]interface{} `json:"content"`
	Unsigned       map[string]interface{} `json:"unsigned,omitempty"`
}

// StateEvent is a room event that carries a state key. Multiple state events
// may exist for the same (type, state key) pair; readers wanting "current"
// state must fold them keeping the greatest timestamp.
type StateEvent struct {
	RoomEvent
	StateKey string `json:"state_key"`
}

// ContentString returns the string value of the given content field.
func (e *RoomEvent) ContentString(key string) string {
	if e.Content == nil {
		return ""
	}
	value, ok := e.Content[key].(string)
	if !ok {
		return ""
	}
	return value
}

// Membership returns the membership state carried by this event, if any.
func (e *StateEvent) Membership() Membership {
	return Membership(e.ContentString("membership"))
}
