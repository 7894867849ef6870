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
	"sort"

	"github.com/muni-town/pigeon/api/types"
)

// AddInvite places an out-of-band delivered invite into the local outbox,
// where the recipient can consume it.
func (r *Rooms) AddInvite(invite *types.Invite) {
	r.inviteMu.Lock()
	r.invites[invite.ID] = invite
	r.inviteMu.Unlock()

	r.notifier.Notify()
}

// Invites returns a snapshot of the unconsumed invites in the outbox.
func (r *Rooms) Invites() []*types.Invite {
	r.inviteMu.Lock()
	defer r.inviteMu.Unlock()

	var invites []*types.Invite
	for id, invite := range r.invites {
		if r.consumed[id] {
			continue
		}
		invites = append(invites, invite)
	}
	sort.Slice(invites, func(i, j int) bool {
		return invites[i].ID < invites[j].ID
	})
	return invites
}

// InvitesFor returns the unconsumed invites addressed to the given
// recipient.
func (r *Rooms) InvitesFor(recipient string) []*types.Invite {
	var invites []*types.Invite
	for _, invite := range r.Invites() {
		if invite.Recipient == recipient {
			invites = append(invites, invite)
		}
	}
	return invites
}

// ConsumeInvite imports the invite's capabilities, making the room locally
// known and visible to ListRooms and Sync. An invite can be consumed exactly
// once; a second consume fails with ErrInviteConsumed.
func (r *Rooms) ConsumeInvite(ctx context.Context, inviteID string) (*types.Invite, error) {
	r.inviteMu.Lock()
	invite, ok := r.invites[inviteID]
	if !ok {
		r.inviteMu.Unlock()
		return nil, types.ErrInviteNotFound
	}
	if r.consumed[inviteID] {
		r.inviteMu.Unlock()
		return nil, types.ErrInviteConsumed
	}
	r.consumed[inviteID] = true
	r.inviteMu.Unlock()

	release := func() {
		r.inviteMu.Lock()
		delete(r.consumed, inviteID)
		r.inviteMu.Unlock()
	}

	if _, err := r.store.ImportCap(ctx, invite.ReadCap); err != nil {
		release()
		return nil, err
	}
	if _, err := r.store.ImportCap(ctx, invite.WriteCap); err != nil {
		release()
		return nil, err
	}

	r.notifier.Notify()
	return invite, nil
}
