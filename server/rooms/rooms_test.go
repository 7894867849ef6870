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

package rooms_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-town/pigeon/api/types"
	"github.com/muni-town/pigeon/pkg/notifier"
	"github.com/muni-town/pigeon/server/backend/store"
	"github.com/muni-town/pigeon/server/backend/store/memory"
	"github.com/muni-town/pigeon/server/profiling/prometheus"
	"github.com/muni-town/pigeon/server/rooms"
)

// fakeResolver resolves members from fixed maps.
type fakeResolver struct {
	keys  map[string]string
	names map[string]string
}

func (f *fakeResolver) ResolvePublicKey(_ context.Context, memberID string) (string, bool) {
	key, ok := f.keys[memberID]
	return key, ok
}

func (f *fakeResolver) ResolveDisplayName(_ context.Context, memberID string) (string, bool) {
	name, ok := f.names[memberID]
	return name, ok
}

// fakeClock is a manually advanced millisecond clock.
type fakeClock struct {
	now atomic.Int64
}

func newFakeClock(start int64) *fakeClock {
	c := &fakeClock{}
	c.now.Store(start)
	return c
}

func (c *fakeClock) Now() int64 {
	return c.now.Load()
}

func (c *fakeClock) Set(ts int64) {
	c.now.Store(ts)
}

type fixture struct {
	rooms    *rooms.Rooms
	store    store.Store
	resolver *fakeResolver
	clock    *fakeClock
	notifier *notifier.Notifier
}

func setUpRooms(t *testing.T, session *rooms.Session) *fixture {
	db, err := memory.New()
	require.NoError(t, err)

	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	res := &fakeResolver{
		keys: map[string]string{
			"@alice": "key-alice",
			"@bob":   "key-bob",
			"@carol": "key-carol",
		},
		names: map[string]string{
			"@alice": "Alice",
			"@bob":   "Bob",
			"@carol": "Carol",
		},
	}
	clock := newFakeClock(1000)
	noti := notifier.New()

	return &fixture{
		rooms:    rooms.New(db, res, noti, metrics, session, rooms.WithClock(clock.Now)),
		store:    db,
		resolver: res,
		clock:    clock,
		notifier: noti,
	}
}

func aliceSession() *rooms.Session {
	return &rooms.Session{MemberID: "@alice", PublicKey: "key-alice"}
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an active identity test", func(t *testing.T) {
		f := setUpRooms(t, nil)
		_, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		assert.ErrorIs(t, err, types.ErrNotAuthenticated)
	})

	t.Run("unresolvable invitee is dropped test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{
			Invitees: []string{"@alice", "@ghost"},
		})
		require.NoError(t, err)

		state, err := f.rooms.RoomState(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{"@alice"}, rooms.JoinedMembers(state))
		assert.Equal(t, "New Room", rooms.RoomName(state))
	})

	t.Run("invitees become joined members test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{
			Name:     "engineering",
			Invitees: []string{"@bob", "@carol"},
		})
		require.NoError(t, err)

		state, err := f.rooms.RoomState(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, []string{"@alice", "@bob", "@carol"}, rooms.JoinedMembers(state))
		assert.Equal(t, "engineering", rooms.RoomName(state))
	})

	t.Run("room name fallbacks test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		aliased, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{Alias: "ops"})
		require.NoError(t, err)
		state, err := f.rooms.RoomState(ctx, aliased)
		require.NoError(t, err)
		assert.Equal(t, "ops", rooms.RoomName(state))

		direct, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{
			Invitees: []string{"@bob", "@carol"},
			IsDirect: true,
		})
		require.NoError(t, err)
		state, err = f.rooms.RoomState(ctx, direct)
		require.NoError(t, err)
		assert.Equal(t, "Bob, Carol", rooms.RoomName(state))
	})

	t.Run("creator gets no self-invite test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		_, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{
			Invitees: []string{"@alice", "@bob"},
		})
		require.NoError(t, err)

		assert.Empty(t, f.rooms.InvitesFor("@alice"))
		assert.Len(t, f.rooms.InvitesFor("@bob"), 1)
	})

	t.Run("created room is listed test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		require.NoError(t, err)

		listed, err := f.rooms.ListRooms(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{roomID}, listed)
	})
}

func TestMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("pagination test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		f.clock.Set(50)
		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		require.NoError(t, err)

		ids := make(map[int64]string)
		for _, ts := range []int64{100, 200, 300} {
			f.clock.Set(ts)
			id, err := f.rooms.SendMessage(ctx, roomID, types.EventRoomMessage, "", map[string]interface{}{
				"body": "hello",
			})
			require.NoError(t, err)
			ids[ts] = id
		}

		forward, err := f.rooms.RoomMessages(ctx, roomID, types.DirectionForward, "150", "", 10)
		require.NoError(t, err)
		require.Len(t, forward.Chunk, 2)
		assert.Equal(t, ids[200], forward.Chunk[0].EventID)
		assert.Equal(t, ids[300], forward.Chunk[1].EventID)
		assert.Equal(t, int64(50), forward.RoomCreatedAt)

		backward, err := f.rooms.RoomMessages(ctx, roomID, types.DirectionBackward, "250", "", 1)
		require.NoError(t, err)
		require.Len(t, backward.Chunk, 1)
		assert.Equal(t, ids[200], backward.Chunk[0].EventID)
	})

	t.Run("forward default lower bound is room creation test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		f.clock.Set(500)
		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		require.NoError(t, err)

		f.clock.Set(600)
		id, err := f.rooms.SendMessage(ctx, roomID, types.EventRoomMessage, "", map[string]interface{}{
			"body": "hi",
		})
		require.NoError(t, err)

		page, err := f.rooms.RoomMessages(ctx, roomID, types.DirectionForward, "", "", 10)
		require.NoError(t, err)
		require.Len(t, page.Chunk, 1)
		assert.Equal(t, id, page.Chunk[0].EventID)
		assert.Equal(t, "500", page.Start)
		assert.NotEmpty(t, page.State)
	})

	t.Run("limit bounds the page test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		require.NoError(t, err)

		for i := int64(0); i < 5; i++ {
			f.clock.Set(2000 + i)
			_, err := f.rooms.SendMessage(ctx, roomID, types.EventRoomMessage, "", map[string]interface{}{
				"body": "m",
			})
			require.NoError(t, err)
		}

		page, err := f.rooms.RoomMessages(ctx, roomID, types.DirectionForward, "", "", 3)
		require.NoError(t, err)
		assert.Len(t, page.Chunk, 3)
	})

	t.Run("unknown room yields nil page test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		page, err := f.rooms.RoomMessages(ctx, "no-such-room", types.DirectionForward, "", "", 10)
		assert.NoError(t, err)
		assert.Nil(t, page)
	})

	t.Run("send returns event id with store failure test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		id, err := f.rooms.SendMessage(ctx, "no-such-room", types.EventRoomMessage, "", map[string]interface{}{
			"body": "hello",
		})
		assert.Error(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("transaction id is kept in unsigned test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		roomID, err := f.rooms.CreateRoom(ctx, types.CreateRoomOptions{})
		require.NoError(t, err)

		f.clock.Set(3000)
		_, err = f.rooms.SendMessage(ctx, roomID, types.EventRoomMessage, "txn-1", map[string]interface{}{
			"body": "hello",
		})
		require.NoError(t, err)

		page, err := f.rooms.RoomMessages(ctx, roomID, types.DirectionForward, "3000", "", 10)
		require.NoError(t, err)
		require.Len(t, page.Chunk, 1)
		assert.Equal(t, "txn-1", page.Chunk[0].Unsigned["transaction_id"])
	})
}

func TestFoldState(t *testing.T) {
	memberEvent := func(id, member string, ts int64, membership types.Membership) types.StateEvent {
		return types.StateEvent{
			RoomEvent: types.RoomEvent{
				EventID:        id,
				Type:           types.EventRoomMember,
				OriginServerTS: ts,
				Content:        map[string]interface{}{"membership": string(membership)},
			},
			StateKey: member,
		}
	}

	t.Run("keeps greatest timestamp per state key test", func(t *testing.T) {
		events := []types.StateEvent{
			memberEvent("e1", "@bob", 100, types.MembershipJoin),
			memberEvent("e2", "@bob", 300, types.MembershipLeave),
			memberEvent("e3", "@carol", 200, types.MembershipJoin),
		}

		assert.Equal(t, []string{"@carol"}, rooms.JoinedMembers(events))
	})

	t.Run("out-of-order arrival is resolved by timestamp test", func(t *testing.T) {
		events := []types.StateEvent{
			memberEvent("e2", "@bob", 300, types.MembershipLeave),
			memberEvent("e1", "@bob", 100, types.MembershipJoin),
		}

		assert.Empty(t, rooms.JoinedMembers(events))
	})

	t.Run("folding is idempotent test", func(t *testing.T) {
		events := []types.StateEvent{
			memberEvent("e1", "@bob", 100, types.MembershipJoin),
			memberEvent("e2", "@bob", 200, types.MembershipLeave),
			memberEvent("e3", "@carol", 150, types.MembershipJoin),
		}

		once := rooms.FoldState(events)
		twice := rooms.FoldState(once)
		assert.Equal(t, once, twice)
	})
}

func TestInvites(t *testing.T) {
	ctx := context.Background()

	t.Run("invite round-trip test", func(t *testing.T) {
		alice := setUpRooms(t, aliceSession())
		bob := setUpRooms(t, &rooms.Session{MemberID: "@bob", PublicKey: "key-bob"})

		roomID, err := alice.rooms.CreateRoom(ctx, types.CreateRoomOptions{
			Invitees: []string{"@bob"},
		})
		require.NoError(t, err)

		invites := alice.rooms.InvitesFor("@bob")
		require.Len(t, invites, 1)
		assert.Equal(t, roomID, invites[0].Room)

		// Out-of-band delivery to bob's outbox, then exactly-once consume.
		bob.rooms.AddInvite(invites[0])
		consumed, err := bob.rooms.ConsumeInvite(ctx, invites[0].ID)
		require.NoError(t, err)
		assert.Equal(t, roomID, consumed.Room)

		listed, err := bob.rooms.ListRooms(ctx)
		require.NoError(t, err)
		assert.Contains(t, listed, roomID)

		_, err = bob.rooms.ConsumeInvite(ctx, invites[0].ID)
		assert.ErrorIs(t, err, types.ErrInviteConsumed)
	})

	t.Run("unknown invite test", func(t *testing.T) {
		f := setUpRooms(t, aliceSession())

		_, err := f.rooms.ConsumeInvite(ctx, "nope")
		assert.ErrorIs(t, err, types.ErrInviteNotFound)
	})
}
