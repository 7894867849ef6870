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

package rooms

import (
	"sort"

	"github.com/muni-town/pigeon/api/types"
)

// FoldState folds state events by (type, state key), keeping for each pair
// the event with the greatest timestamp. Out-of-order input is resolved by
// timestamp comparison, not arrival order; folding is idempotent. The result
// is ordered by timestamp ascending.
func FoldState(events []types.StateEvent) []types.StateEvent {
	type stateKey struct {
		eventType types.EventType
		stateKey  string
	}

	folded := make(map[stateKey]types.StateEvent)
	for _, event := range events {
		key := stateKey{eventType: event.Type, stateKey: event.StateKey}
		if current, ok := folded[key]; ok && current.OriginServerTS > event.OriginServerTS {
			continue
		}
		folded[key] = event
	}

	result := make([]types.StateEvent, 0, len(folded))
	for _, event := range folded {
		result = append(result, event)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].OriginServerTS != result[j].OriginServerTS {
			return result[i].OriginServerTS < result[j].OriginServerTS
		}
		return result[i].EventID < result[j].EventID
	})
	return result
}

// JoinedMembers returns the ids of members whose folded membership state is
// join, sorted for stable output.
func JoinedMembers(events []types.StateEvent) []string {
	var members []string
	for _, event := range FoldState(events) {
		if event.Type != types.EventRoomMember {
			continue
		}
		if event.Membership() == types.MembershipJoin {
			members = append(members, event.StateKey)
		}
	}
	sort.Strings(members)
	return members
}

// RoomName returns the folded current name of the room, if any.
func RoomName(events []types.StateEvent) string {
	for _, event := range FoldState(events) {
		if event.Type == types.EventRoomName {
			return event.ContentString("name")
		}
	}
	return ""
}
