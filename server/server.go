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

// Package server provides the Pigeon server, the daemon a chat client talks
// to. It composes the backend, the client API server and the profiling
// server.
package server

import (
	"context"
	gosync "sync"

	"github.com/muni-town/pigeon/server/backend"
	"github.com/muni-town/pigeon/server/httpapi"
	"github.com/muni-town/pigeon/server/profiling"
	"github.com/muni-town/pigeon/server/profiling/prometheus"
	"github.com/muni-town/pigeon/server/rooms"
)

// Pigeon is a server of Pigeon. It maps room operations from chat clients
// onto the capability-addressed document store and keeps documents in sync
// with remote peers.
type Pigeon struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	apiServer       *httpapi.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Pigeon.
func New(conf *Config) (*Pigeon, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Mongo,
		conf.Resolver,
		conf.Peers,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	var session *rooms.Session
	if conf.Backend.MemberID != "" {
		session = &rooms.Session{
			MemberID:  conf.Backend.MemberID,
			PublicKey: conf.Backend.PublicKey,
		}
	}
	apiServer := httpapi.NewServer(conf.API, be.Rooms, session)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Pigeon{
		conf:            conf,
		backend:         be,
		apiServer:       apiServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Backend returns the backend of this server.
func (p *Pigeon) Backend() *backend.Backend {
	return p.backend
}

// Start starts the server by opening the API port.
func (p *Pigeon) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.backend.Start(context.Background()); err != nil {
		return err
	}

	if p.profilingServer != nil {
		if err := p.profilingServer.Start(); err != nil {
			return err
		}
	}

	return p.apiServer.Start()
}

// Shutdown shuts down this Pigeon server.
func (p *Pigeon) Shutdown(graceful bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.shutdown {
		return nil
	}

	p.apiServer.Shutdown(graceful)
	if p.profilingServer != nil {
		p.profilingServer.Shutdown(graceful)
	}

	if err := p.backend.Shutdown(); err != nil {
		return err
	}

	close(p.shutdownCh)
	p.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (p *Pigeon) ShutdownCh() <-chan struct{} {
	return p.shutdownCh
}

// APIAddr returns the address of the client API.
func (p *Pigeon) APIAddr() string {
	return p.conf.APIAddr()
}
