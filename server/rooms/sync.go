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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/muni-town/pigeon/api/types"
	"github.com/muni-town/pigeon/server/backend/store"
	"github.com/muni-town/pigeon/server/logging"
)

// Sync runs one long-poll iteration: it computes the per-room updates since
// the given cursor and returns immediately when any room has news, when the
// timeout is zero, or after at most one wake-recompute cycle. Otherwise it
// races the notifier against the timeout, recomputes once, and returns
// unconditionally. There is no cooperative cancellation beyond ctx; a new
// request runs its own independent loop.
func (r *Rooms) Sync(ctx context.Context, since string, timeout time.Duration) (*types.SyncResponse, error) {
	sinceTS, _ := parseCursor(since)

	secondPass := false
	for {
		resp, err := r.computeSync(ctx, sinceTS, since)
		if err != nil {
			return nil, err
		}
		if len(resp.Rooms.Join) > 0 || timeout == 0 || secondPass {
			return resp, nil
		}

		timer := time.NewTimer(timeout)
		select {
		case <-r.notifier.Wait():
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return resp, nil
		}
		secondPass = true
	}
}

// computeSync collects the updates of every known room since the cursor. A
// room is included when it has new timeline events or appeared after the
// cursor itself.
func (r *Rooms) computeSync(ctx context.Context, sinceTS int64, since string) (*types.SyncResponse, error) {
	r.metrics.AddSyncLoops()

	resp := &types.SyncResponse{
		NextBatch: formatCursor(r.clock()),
		Rooms:     types.SyncRooms{Join: make(map[string]types.JoinedRoom)},
	}

	roomIDs, err := r.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	for _, roomID := range roomIDs {
		docs, err := r.store.Docs(roomID)
		if err != nil {
			if errors.Is(err, store.ErrShareNotFound) {
				continue
			}
			return nil, err
		}

		marker, err := docs.LatestDocAtPath(ctx, pathSelf)
		if err != nil {
			return nil, fmt.Errorf("find room marker of %s: %w", roomID, err)
		}
		if marker == nil {
			// The share is known but its room marker has not replicated yet.
			continue
		}

		fetched, err := docs.QueryDocs(ctx, store.Query{
			PathPrefix:   prefixTimeline,
			TimestampGte: sinceTS,
		})
		if err != nil {
			return nil, fmt.Errorf("query timeline of %s: %w", roomID, err)
		}

		var events []types.RoomEvent
		for _, doc := range fetched {
			var event types.RoomEvent
			if err := json.Unmarshal(doc.Payload, &event); err != nil {
				logging.From(ctx).Warnf("skipping undecodable timeline doc at %s: %v", doc.Path, err)
				continue
			}
			events = append(events, event)
		}

		if len(events) == 0 && sinceTS > 0 && marker.Timestamp < sinceTS {
			// No new timeline entries and the room predates the cursor; it
			// still counts as updated when new state documents arrived.
			stateDocs, err := docs.QueryDocs(ctx, store.Query{
				PathPrefix:   prefixState,
				TimestampGte: sinceTS,
				Limit:        1,
			})
			if err != nil {
				return nil, fmt.Errorf("query state of %s: %w", roomID, err)
			}
			if len(stateDocs) == 0 {
				continue
			}
		}

		state, err := r.RoomState(ctx, roomID)
		if err != nil {
			return nil, err
		}

		resp.Rooms.Join[roomID] = types.JoinedRoom{
			State: types.StateEvents{Events: state},
			Timeline: types.Timeline{
				Events:    events,
				Limited:   false,
				PrevBatch: since,
			},
		}
	}

	return resp, nil
}
