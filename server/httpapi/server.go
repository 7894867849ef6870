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
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/muni-town/pigeon/server/logging"
	"github.com/muni-town/pigeon/server/rooms"
)

// Server serves the Matrix-compatible client API.
type Server struct {
	conf       *Config
	rooms      *rooms.Rooms
	session    *rooms.Session
	serveMux   *http.ServeMux
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, roomAPI *rooms.Rooms, session *rooms.Session) *Server {
	s := &Server{
		conf:    conf,
		rooms:   roomAPI,
		session: session,
		logger:  logging.New("httpapi"),
	}

	serveMux := http.NewServeMux()
	serveMux.HandleFunc("/_matrix/client/versions", s.handleVersions)
	serveMux.HandleFunc("/_matrix/client/v3/login", s.handleLogin)
	serveMux.HandleFunc("/_matrix/client/v3/", s.withAuth(s.route))

	s.serveMux = serveMux
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: serveMux,
	}
	return s
}

// Handler returns the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.serveMux
}

// Start starts the server.
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("serving client api on %d", s.conf.Port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Errorf("HTTP server ListenAndServe: %v", err)
		}
	}()
	return nil
}

// Shutdown shuts down the server.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("HTTP server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		s.logger.Errorf("HTTP server close: %v", err)
	}
}

// withAuth rejects requests whose bearer token does not match the
// configured access token.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || token != s.conf.AccessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"errcode": "M_UNKNOWN_TOKEN",
				"error":   "Unrecognised access token",
			})
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("access_token")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.DefaultLogger().Warnf("encode response: %v", err)
	}
}
