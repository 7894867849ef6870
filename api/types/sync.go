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

// SyncResponse is the result of one long-poll sync request.
type SyncResponse struct {
	// NextBatch is the cursor to pass as `since` on the next request.
	NextBatch string `json:"next_batch"`

	// Rooms holds the per-room updates since the request's cursor.
	Rooms SyncRooms `json:"rooms"`
}

// SyncRooms groups room updates by the local member's relationship to the
// room.
type SyncRooms struct {
	Join map[string]JoinedRoom `json:"join"`
}

// JoinedRoom is the update of one joined room.
type JoinedRoom struct {
	State    StateEvents `json:"state"`
	Timeline Timeline    `json:"timeline"`
}

// StateEvents wraps the state events of a room update.
type StateEvents struct {
	Events []StateEvent `json:"events"`
}

// Timeline is the new portion of a room's timeline.
type Timeline struct {
	Events    []RoomEvent `json:"events"`
	Limited   bool        `json:"limited"`
	PrevBatch string      `json:"prev_batch"`
}
