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

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/muni-town/pigeon/api/types"
	"github.com/muni-town/pigeon/server/rooms"
)

// stubPaths are endpoints chat clients poll that this shim answers with an
// empty object.
var stubPaths = map[string]bool{
	"pushrules":       true,
	"capabilities":    true,
	"devices":         true,
	"keys/query":      true,
	"keys/upload":     true,
	"voip/turnServer": true,
	"user_directory":  true,
}

// route dispatches /_matrix/client/v3/ requests by path segments. The
// standard mux of this Go version has no pattern variables, so room ids and
// event types are parsed by hand.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/_matrix/client/v3/")
	rest = strings.Trim(rest, "/")
	segments := strings.Split(rest, "/")

	switch {
	case rest == "sync" && r.Method == http.MethodGet:
		s.handleSync(w, r)
	case rest == "createRoom" && r.Method == http.MethodPost:
		s.handleCreateRoom(w, r)
	case rest == "joined_rooms" && r.Method == http.MethodGet:
		s.handleJoinedRooms(w, r)
	case len(segments) == 5 && segments[0] == "rooms" && segments[2] == "send" && r.Method == http.MethodPut:
		s.handleSend(w, r, unescape(segments[1]), segments[3], segments[4])
	case len(segments) == 3 && segments[0] == "rooms" && segments[2] == "messages" && r.Method == http.MethodGet:
		s.handleMessages(w, r, unescape(segments[1]))
	case len(segments) == 3 && segments[0] == "rooms" && segments[2] == "state" && r.Method == http.MethodGet:
		s.handleState(w, r, unescape(segments[1]))
	case len(segments) == 3 && segments[0] == "rooms" && segments[2] == "members" && r.Method == http.MethodGet:
		s.handleMembers(w, r, unescape(segments[1]))
	case len(segments) >= 3 && segments[0] == "user" && segments[2] == "filter":
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusOK, map[string]string{"filter_id": "0"})
		} else {
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		}
	case stubPaths[rest] || stubPaths[strings.Join(segments[:min(2, len(segments))], "/")]:
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{
			"errcode": "M_UNRECOGNIZED",
			"error":   "Unrecognized request",
		})
	}
}

func (s *Server) handleVersions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": []string{"v1.1", "v1.11"},
	})
}

// handleLogin hands out the configured access token. The real login flow is
// handled by an external identity provider; this endpoint only lets a chat
// client complete its handshake.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"flows": []map[string]string{{"type": "m.login.password"}},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.conf.AccessToken,
		"user_id":      s.session.MemberID,
		"device_id":    "PIGEON",
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	timeout := time.Duration(0)
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	resp, err := s.rooms.Sync(r.Context(), since, timeout)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var opts types.CreateRoomOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errcode": "M_BAD_JSON",
			"error":   err.Error(),
		})
		return
	}

	roomID, err := s.rooms.CreateRoom(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
}

func (s *Server) handleJoinedRooms(w http.ResponseWriter, r *http.Request) {
	listed, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if listed == nil {
		listed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"joined_rooms": listed})
}

// handleSend accepts the message optimistically: a store failure is logged
// and the event id is still returned to the client.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, roomID, eventType, txnID string) {
	var content map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"errcode": "M_BAD_JSON",
			"error":   err.Error(),
		})
		return
	}

	eventID, err := s.rooms.SendMessage(r.Context(), roomID, types.EventType(eventType), txnID, content)
	if err != nil {
		if errors.Is(err, types.ErrNotAuthenticated) {
			s.writeError(w, err)
			return
		}
		s.logger.Errorf("send %s to %s: %v", eventID, roomID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"event_id": eventID})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	dir := types.DirectionForward
	if query.Get("dir") == string(types.DirectionBackward) {
		dir = types.DirectionBackward
	}

	page, err := s.rooms.RoomMessages(r.Context(), roomID, dir, query.Get("from"), query.Get("to"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if page == nil {
		// Unknown room: pagination callers treat it as an empty page.
		page = &types.MessagesPage{Start: query.Get("from")}
	}
	if page.Chunk == nil {
		page.Chunk = []types.RoomEvent{}
	}
	if page.State == nil {
		page.State = []types.StateEvent{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, roomID string) {
	state, err := s.rooms.RoomState(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if state == nil {
		state = []types.StateEvent{}
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, roomID string) {
	state, err := s.rooms.RoomState(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	chunk := []types.StateEvent{}
	for _, event := range rooms.FoldState(state) {
		if event.Type == types.EventRoomMember && event.Membership() == types.MembershipJoin {
			chunk = append(chunk, event)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunk": chunk})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"errcode": "M_UNKNOWN_TOKEN",
			"error":   err.Error(),
		})
	case errors.Is(err, types.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"errcode": "M_NOT_FOUND",
			"error":   err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"errcode": "M_UNKNOWN",
			"error":   err.Error(),
		})
	}
}

func unescape(segment string) string {
	unescaped, err := url.PathUnescape(segment)
	if err != nil {
		return segment
	}
	return unescaped
}
