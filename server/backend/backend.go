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

// Package backend assembles the resources the daemon runs on: the document
// store, the identity resolver, the room mapper and the peer bridge.
package backend

import (
	"context"
	"errors"

	"github.com/muni-town/pigeon/pkg/cache"
	"github.com/muni-town/pigeon/pkg/notifier"
	"github.com/muni-town/pigeon/server/backend/resolver"
	"github.com/muni-town/pigeon/server/backend/store"
	memdb "github.com/muni-town/pigeon/server/backend/store/memory"
	"github.com/muni-town/pigeon/server/backend/store/mongo"
	"github.com/muni-town/pigeon/server/logging"
	"github.com/muni-town/pigeon/server/peers"
	"github.com/muni-town/pigeon/server/profiling/prometheus"
	"github.com/muni-town/pigeon/server/rooms"
)

// Backend manages pigeon's backend: the document store, identity resolution,
// the room mapper and the connection bridge.
type Backend struct {
	Config *Config

	// Store is the document store instance.
	Store store.Store
	// Resolver looks up member public keys and display names.
	Resolver *resolver.Resolver
	// Notifier wakes pending long-polls on local mutations.
	Notifier *notifier.Notifier
	// Rooms maps chat-room operations onto the document store.
	Rooms *rooms.Rooms
	// Bridge talks to the external peer-connection process. Nil when peer
	// networking is disabled.
	Bridge *peers.Bridge

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics

	peersConf *peers.Config
	syncer    peers.Syncer

	keyCache  *cache.LRU[string, string]
	nameCache *cache.LRU[string, string]
}

// New creates a new instance of Backend. If the MongoDB configuration is
// given, documents are stored in MongoDB; otherwise in memory.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	resolverConf *resolver.Config,
	peersConf *peers.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	var stor store.Store
	var err error
	if mongoConf != nil {
		stor, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		stor, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	keyCache := cache.NewLRU[string, string](
		resolverConf.CacheSize,
		resolverConf.ParseCacheTTL(),
		"resolver.keys",
	)
	nameCache := cache.NewLRU[string, string](
		resolverConf.CacheSize,
		resolverConf.ParseCacheTTL(),
		"resolver.names",
	)
	res := resolver.New(resolverConf, keyCache, nameCache)

	var session *rooms.Session
	if conf.MemberID != "" {
		session = &rooms.Session{
			MemberID:  conf.MemberID,
			PublicKey: conf.PublicKey,
		}
	}

	noti := notifier.New()
	roomAPI := rooms.New(stor, res, noti, metrics, session)

	storeInfo := "memory"
	if mongoConf != nil {
		storeInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: store: %s", storeInfo)

	return &Backend{
		Config:   conf,
		Store:    stor,
		Resolver: res,
		Notifier: noti,
		Rooms:    roomAPI,
		Metrics:  metrics,

		peersConf: peersConf,

		keyCache:  keyCache,
		nameCache: nameCache,
	}, nil
}

// AttachSyncer sets the replication session attached to every established
// transport. Must be called before Start.
func (b *Backend) AttachSyncer(syncer peers.Syncer) {
	b.syncer = syncer
}

// Start connects to the peer bridge when one is configured and begins
// processing its events.
func (b *Backend) Start(ctx context.Context) error {
	if b.peersConf == nil || b.peersConf.BridgeURL == "" {
		logging.DefaultLogger().Infof("backend started without peer bridge")
		return nil
	}

	channel, err := peers.DialChannel(ctx, b.peersConf.BridgeURL)
	if err != nil {
		return err
	}

	bridge := peers.NewBridge(channel)
	bridge.OnConnect(func(transport *peers.Transport) {
		b.Metrics.AddTransportOpened(string(transport.Role()))
		if b.syncer == nil {
			return
		}
		go func() {
			if err := b.syncer.Sync(context.Background(), transport); err != nil {
				logging.DefaultLogger().Warnf(
					"sync with %s: %v", transport.RemotePeerID(), err,
				)
			}
		}()
	})
	bridge.OnClose(func(*peers.Transport) {
		b.Metrics.AddTransportClosed()
	})

	go func() {
		if err := bridge.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			logging.DefaultLogger().Errorf("bridge stopped: %v", err)
		}
	}()

	b.Bridge = bridge
	logging.DefaultLogger().Infof("backend started: bridge: %s", b.peersConf.BridgeURL)
	return nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	if b.Bridge != nil {
		if err := b.Bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	b.Metrics.SetResolverCacheStats("keys", b.keyCache.Hits(), b.keyCache.Misses())
	b.Metrics.SetResolverCacheStats("names", b.nameCache.Hits(), b.nameCache.Misses())

	if err := b.Store.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
