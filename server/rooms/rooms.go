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

// Package rooms maps chat-room operations onto the capability-addressed
// document store. A room is a share carrying a room-marker document at the
// `self` path; membership and metadata live as state documents under
// `events/state`, messages under `events/timeline`.
package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/xid"

	"github.com/muni-town/pigeon/api/types"
	"github.com/muni-town/pigeon/internal/validation"
	"github.com/muni-town/pigeon/pkg/notifier"
	"github.com/muni-town/pigeon/server/backend/store"
	"github.com/muni-town/pigeon/server/logging"
	"github.com/muni-town/pigeon/server/profiling/prometheus"
)

// defaultRoomName is used when neither a name, an alias nor direct-member
// display names are available.
const defaultRoomName = "New Room"

// defaultMessagesLimit bounds a timeline page when the caller gives no
// limit.
const defaultMessagesLimit = 10

var (
	pathSelf       = store.PathOf("self")
	prefixState    = store.PathOf("events", "state")
	prefixTimeline = store.PathOf("events", "timeline")
)

// Resolver looks up member public keys and display names. Lookups are
// best-effort; a miss is not an error.
type Resolver interface {
	ResolvePublicKey(ctx context.Context, memberID string) (string, bool)
	ResolveDisplayName(ctx context.Context, memberID string) (string, bool)
}

// Session is the active local identity. Operations that write to rooms fail
// with ErrNotAuthenticated without one.
type Session struct {
	// MemberID is the stable participant identifier.
	MemberID string

	// PublicKey is the identity capabilities are scoped to.
	PublicKey string
}

// Option configures a Rooms instance.
type Option func(*Rooms)

// WithClock overrides the millisecond clock used for document timestamps.
func WithClock(clock func() int64) Option {
	return func(r *Rooms) {
		r.clock = clock
	}
}

// Rooms translates room operations into document-store operations and keeps
// the invite outbox.
type Rooms struct {
	store    store.Store
	resolver Resolver
	notifier *notifier.Notifier
	metrics  *prometheus.Metrics
	session  *Session
	logger   logging.Logger
	clock    func() int64

	inviteMu sync.Mutex
	invites  map[string]*types.Invite
	consumed map[string]bool
}

// New creates a new instance of Rooms.
func New(
	stor store.Store,
	res Resolver,
	noti *notifier.Notifier,
	metrics *prometheus.Metrics,
	session *Session,
	opts ...Option,
) *Rooms {
	r := &Rooms{
		store:    stor,
		resolver: res,
		notifier: noti,
		metrics:  metrics,
		session:  session,
		logger:   logging.New("rooms"),
		clock: func() int64 {
			return time.Now().UnixMilli()
		},
		invites:  make(map[string]*types.Invite),
		consumed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notifier returns the notifier fired on every local mutation.
func (r *Rooms) Notifier() *notifier.Notifier {
	return r.notifier
}

// ListRooms returns the tags of all shares the local identity holds any
// capability for.
func (r *Rooms) ListRooms(ctx context.Context) ([]string, error) {
	if r.session == nil || r.session.PublicKey == "" {
		return nil, types.ErrNotAuthenticated
	}

	caps, err := r.store.CapsFor(ctx, r.session.PublicKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var rooms []string
	for _, cp := range caps {
		if seen[cp.Share] {
			continue
		}
		seen[cp.Share] = true
		rooms = append(rooms, cp.Share)
	}
	return rooms, nil
}

// invitee is one invited member with a resolved public key.
type invitee struct {
	id          string
	publicKey   string
	displayName string
}

// CreateRoom creates a new room: a share, capabilities for the creator,
// delegated capabilities per invitee delivered as invites, and the initial
// state documents. Invitees whose public key cannot be resolved are dropped
// with a warning; room creation proceeds with the rest. Bootstrap is
// best-effort: a failure mid-sequence aborts the operation but does not roll
// back documents already written.
func (r *Rooms) CreateRoom(ctx context.Context, opts types.CreateRoomOptions) (string, error) {
	if r.session == nil || r.session.MemberID == "" || r.session.PublicKey == "" {
		return "", types.ErrNotAuthenticated
	}
	if err := validation.Validate(opts); err != nil {
		return "", err
	}

	var invitees []invitee
	for _, memberID := range opts.Invitees {
		if memberID == r.session.MemberID {
			continue
		}
		key, ok := r.resolver.ResolvePublicKey(ctx, memberID)
		if !ok {
			logging.From(ctx).Warnf("dropping invitee %s: public key unresolvable", memberID)
			continue
		}
		name, _ := r.resolver.ResolveDisplayName(ctx, memberID)
		invitees = append(invitees, invitee{id: memberID, publicKey: key, displayName: name})
	}

	share, err := r.store.CreateShare(ctx, opts.Name, true)
	if err != nil {
		return "", fmt.Errorf("create room share: %w", err)
	}

	readCap, err := r.store.MintCap(ctx, share.Tag, r.session.PublicKey, store.AccessRead)
	if err != nil {
		return "", fmt.Errorf("mint creator read capability: %w", err)
	}
	writeCap, err := r.store.MintCap(ctx, share.Tag, r.session.PublicKey, store.AccessWrite)
	if err != nil {
		return "", fmt.Errorf("mint creator write capability: %w", err)
	}

	for _, inv := range invitees {
		if err := r.issueInvite(readCap, writeCap, share.Tag, inv); err != nil {
			return "", err
		}
	}

	docs, err := r.store.Docs(share.Tag)
	if err != nil {
		return "", err
	}

	now := r.clock()
	if err := r.writeMarker(ctx, docs, now); err != nil {
		return "", err
	}

	if err := r.writeStateEvent(ctx, docs, &types.StateEvent{
		RoomEvent: types.RoomEvent{
			EventID:        ulid.Make().String(),
			Type:           types.EventRoomCreate,
			Sender:         r.session.MemberID,
			OriginServerTS: now,
			Content:        map[string]interface{}{"creator": r.session.MemberID},
		},
	}); err != nil {
		return "", err
	}

	selfName, _ := r.resolver.ResolveDisplayName(ctx, r.session.MemberID)
	members := append([]invitee{{
		id:          r.session.MemberID,
		publicKey:   r.session.PublicKey,
		displayName: selfName,
	}}, invitees...)
	for _, member := range members {
		content := map[string]interface{}{"membership": string(types.MembershipJoin)}
		if member.displayName != "" {
			content["displayname"] = member.displayName
		}
		if err := r.writeStateEvent(ctx, docs, &types.StateEvent{
			RoomEvent: types.RoomEvent{
				EventID:        ulid.Make().String(),
				Type:           types.EventRoomMember,
				Sender:         r.session.MemberID,
				OriginServerTS: now,
				Content:        content,
			},
			StateKey: member.id,
		}); err != nil {
			return "", err
		}
	}

	if err := r.writeStateEvent(ctx, docs, &types.StateEvent{
		RoomEvent: types.RoomEvent{
			EventID:        ulid.Make().String(),
			Type:           types.EventRoomName,
			Sender:         r.session.MemberID,
			OriginServerTS: now,
			Content:        map[string]interface{}{"name": r.roomName(opts, invitees)},
		},
	}); err != nil {
		return "", err
	}

	r.metrics.AddRoomsCreated(1)
	r.notifier.Notify()

	return share.Tag, nil
}

// roomName picks the room name: the explicit name, else the alias, else for
// direct rooms the comma-joined names of the non-creator members, else the
// default.
func (r *Rooms) roomName(opts types.CreateRoomOptions, invitees []invitee) string {
	if opts.Name != "" {
		return opts.Name
	}
	if opts.Alias != "" {
		return opts.Alias
	}
	if opts.IsDirect && len(invitees) > 0 {
		var names []string
		for _, inv := range invitees {
			if inv.displayName != "" {
				names = append(names, inv.displayName)
			} else {
				names = append(names, inv.id)
			}
		}
		return strings.Join(names, ", ")
	}
	return defaultRoomName
}

func (r *Rooms) writeMarker(ctx context.Context, docs store.Docs, now int64) error {
	payload, err := json.Marshal(&types.RoomInfo{Type: types.RoomKind})
	if err != nil {
		return fmt.Errorf("encode room marker: %w", err)
	}

	if err := docs.Set(ctx, store.DocInput{
		Identity:  r.session.PublicKey,
		Path:      pathSelf,
		Payload:   payload,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("write room marker: %w", err)
	}
	return nil
}

func (r *Rooms) writeStateEvent(ctx context.Context, docs store.Docs, event *types.StateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode state event %s: %w", event.EventID, err)
	}

	if err := docs.Set(ctx, store.DocInput{
		Identity:  r.session.PublicKey,
		Path:      store.PathOf("events", "state", event.EventID),
		Payload:   payload,
		Timestamp: event.OriginServerTS,
	}); err != nil {
		return fmt.Errorf("write state event %s: %w", event.EventID, err)
	}
	return nil
}

// RoomState returns all state documents of the room ordered by timestamp
// ascending, decoded and NOT deduplicated. Callers wanting current state
// fold the result with FoldState. An unknown room yields a nil slice.
func (r *Rooms) RoomState(ctx context.Context, roomID string) ([]types.StateEvent, error) {
	docs, err := r.store.Docs(roomID)
	if err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			return nil, nil
		}
		return nil, err
	}

	fetched, err := docs.QueryDocs(ctx, store.Query{PathPrefix: prefixState})
	if err != nil {
		return nil, fmt.Errorf("query state of %s: %w", roomID, err)
	}

	var events []types.StateEvent
	for _, doc := range fetched {
		var event types.StateEvent
		if err := json.Unmarshal(doc.Payload, &event); err != nil {
			logging.From(ctx).Warnf("skipping undecodable state doc at %s: %v", doc.Path, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// SendMessage writes one timeline document timestamped at call time. The
// event id is always returned; a store failure is returned alongside it and
// logged, so callers may treat the send as accepted optimistically.
func (r *Rooms) SendMessage(
	ctx context.Context,
	roomID string,
	eventType types.EventType,
	txnID string,
	content map[string]interface{},
) (string, error) {
	eventID := ulid.Make().String()
	if r.session == nil || r.session.MemberID == "" {
		return eventID, types.ErrNotAuthenticated
	}

	event := &types.RoomEvent{
		EventID:        eventID,
		Type:           eventType,
		Sender:         r.session.MemberID,
		OriginServerTS: r.clock(),
		Content:        content,
	}
	if txnID != "" {
		event.Unsigned = map[string]interface{}{"transaction_id": txnID}
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return eventID, fmt.Errorf("encode message %s: %w", eventID, err)
	}

	docs, err := r.store.Docs(roomID)
	if err != nil {
		logging.From(ctx).Errorf("send message %s to %s: %v", eventID, roomID, err)
		return eventID, err
	}

	if err := docs.Set(ctx, store.DocInput{
		Identity:  r.session.PublicKey,
		Path:      store.PathOf("events", "timeline", eventID),
		Payload:   payload,
		Timestamp: event.OriginServerTS,
	}); err != nil {
		logging.From(ctx).Errorf("send message %s to %s: %v", eventID, roomID, err)
		return eventID, fmt.Errorf("write message %s: %w", eventID, err)
	}

	r.metrics.AddMessagesSent(1)
	r.notifier.Notify()

	return eventID, nil
}

// RoomMessages returns one page of the room's timeline, strictly ordered by
// timestamp per direction, along with the full non-deduplicated state and
// the room's creation timestamp. Forward pages start at the inclusive lower
// bound `from` (or room creation); backward pages start at the inclusive
// upper bound `from` (or now). An unknown room yields a nil page, no error.
func (r *Rooms) RoomMessages(
	ctx context.Context,
	roomID string,
	dir types.MessagesDirection,
	from, to string,
	limit int,
) (*types.MessagesPage, error) {
	if limit <= 0 {
		limit = defaultMessagesLimit
	}

	docs, err := r.store.Docs(roomID)
	if err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			return nil, nil
		}
		return nil, err
	}

	marker, err := docs.LatestDocAtPath(ctx, pathSelf)
	if err != nil {
		return nil, fmt.Errorf("find room marker of %s: %w", roomID, err)
	}
	if marker == nil {
		return nil, nil
	}
	roomCreatedAt := marker.Timestamp

	fromTS, hasFrom := parseCursor(from)
	toTS, hasTo := parseCursor(to)

	query := store.Query{PathPrefix: prefixTimeline, Limit: limit}
	start := from
	if dir == types.DirectionBackward {
		query.Descending = true
		if hasFrom {
			query.TimestampLt = fromTS + 1
		}
		if hasTo {
			query.TimestampGte = toTS
		}
		if start == "" {
			start = formatCursor(r.clock())
		}
	} else {
		query.TimestampGte = roomCreatedAt
		if hasFrom {
			query.TimestampGte = fromTS
		}
		if hasTo {
			query.TimestampLt = toTS
		}
		if start == "" {
			start = formatCursor(roomCreatedAt)
		}
	}

	fetched, err := docs.QueryDocs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query timeline of %s: %w", roomID, err)
	}

	var chunk []types.RoomEvent
	for _, doc := range fetched {
		var event types.RoomEvent
		if err := json.Unmarshal(doc.Payload, &event); err != nil {
			logging.From(ctx).Warnf("skipping undecodable timeline doc at %s: %v", doc.Path, err)
			continue
		}
		chunk = append(chunk, event)
	}

	state, err := r.RoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	end := ""
	if len(chunk) > 0 {
		end = formatCursor(chunk[len(chunk)-1].OriginServerTS)
	}

	return &types.MessagesPage{
		Start:         start,
		End:           end,
		State:         state,
		Chunk:         chunk,
		RoomCreatedAt: roomCreatedAt,
	}, nil
}

// issueInvite delegates read and write capabilities to the invitee and
// appends an invite to the outbox.
func (r *Rooms) issueInvite(readCap, writeCap *store.Capability, roomID string, inv invitee) error {
	read, err := readCap.Delegate(inv.publicKey, store.AccessRead)
	if err != nil {
		return fmt.Errorf("delegate read capability to %s: %w", inv.id, err)
	}
	write, err := writeCap.Delegate(inv.publicKey, store.AccessWrite)
	if err != nil {
		return fmt.Errorf("delegate write capability to %s: %w", inv.id, err)
	}

	invite := &types.Invite{
		ID:        xid.New().String(),
		Room:      roomID,
		Recipient: inv.id,
		ReadCap:   read.Export(),
		WriteCap:  write.Export(),
		CreatedAt: r.clock(),
	}

	r.inviteMu.Lock()
	r.invites[invite.ID] = invite
	r.inviteMu.Unlock()

	r.metrics.AddInvitesIssued(1)
	return nil
}

func parseCursor(cursor string) (int64, bool) {
	if cursor == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func formatCursor(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
