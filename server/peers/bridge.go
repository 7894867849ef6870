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

package peers

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"github.com/muni-town/pigeon/pkg/cmap"
	"github.com/muni-town/pigeon/server/logging"
)

// ConnectHandler is invoked with every newly established transport, both
// outbound and inbound.
type ConnectHandler func(*Transport)

// CloseHandler is invoked when a transport is closed by the other side.
type CloseHandler func(*Transport)

// pendingConn tracks one in-flight connect request until the matching
// connOpened event arrives.
type pendingConn struct {
	remotePeerID string
	transportID  string
	ready        chan struct{}
	transport    *Transport
}

// Bridge shuttles correlation-tagged messages across the channel to
// establish and tear down connections. It owns the transport registry
// exclusively.
type Bridge struct {
	channel Channel
	logger  logging.Logger

	peerMu    sync.Mutex
	peerID    string
	peerReady chan struct{}

	connMu        sync.Mutex
	pending       map[string]*pendingConn
	byTransportID map[string]*pendingConn

	transports *cmap.Map[*Transport]
	byRemote   *cmap.Map[*Transport]

	handlerMu       sync.RWMutex
	connectHandlers []ConnectHandler
	closeHandlers   []CloseHandler
}

// NewBridge creates a new instance of Bridge over the given channel.
func NewBridge(channel Channel) *Bridge {
	return &Bridge{
		channel:       channel,
		logger:        logging.New("bridge"),
		peerReady:     make(chan struct{}),
		pending:       make(map[string]*pendingConn),
		byTransportID: make(map[string]*pendingConn),
		transports:    cmap.New[*Transport](),
		byRemote:      cmap.New[*Transport](),
	}
}

// OnConnect registers a handler invoked with every established transport.
func (b *Bridge) OnConnect(handler ConnectHandler) {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	b.connectHandlers = append(b.connectHandlers, handler)
}

// OnClose registers a handler invoked when a transport closes.
func (b *Bridge) OnClose(handler CloseHandler) {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	b.closeHandlers = append(b.closeHandlers, handler)
}

// PeerID returns the local peer id, blocking until the peer has opened.
func (b *Bridge) PeerID(ctx context.Context) (string, error) {
	b.peerMu.Lock()
	ready := b.peerReady
	id := b.peerID
	b.peerMu.Unlock()

	if id != "" {
		return id, nil
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	b.peerMu.Lock()
	defer b.peerMu.Unlock()
	return b.peerID, nil
}

// Connect establishes a transport to the given remote peer. It is
// idempotent per remote id: a live or still-pending connection to the same
// remote yields the same transport. There is no internal timeout; callers
// bound latency with ctx.
func (b *Bridge) Connect(ctx context.Context, remotePeerID string) (*Transport, error) {
	b.connMu.Lock()
	if transport, ok := b.byRemote.Get(remotePeerID); ok && !transport.Closed() {
		b.connMu.Unlock()
		return transport, nil
	}
	if p, ok := b.pending[remotePeerID]; ok {
		b.connMu.Unlock()
		return b.await(ctx, p)
	}

	p := &pendingConn{
		remotePeerID: remotePeerID,
		transportID:  xid.New().String(),
		ready:        make(chan struct{}),
	}
	b.pending[remotePeerID] = p
	b.byTransportID[p.transportID] = p
	b.connMu.Unlock()

	if err := b.channel.Send(Message{
		Type:         MsgConnect,
		TransportID:  p.transportID,
		RemotePeerID: remotePeerID,
	}); err != nil {
		b.dropPending(p)
		return nil, err
	}

	return b.await(ctx, p)
}

func (b *Bridge) await(ctx context.Context, p *pendingConn) (*Transport, error) {
	select {
	case <-p.ready:
		return p.transport, nil
	case <-ctx.Done():
		b.dropPending(p)
		return nil, ctx.Err()
	}
}

func (b *Bridge) dropPending(p *pendingConn) {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.pending[p.remotePeerID] == p {
		delete(b.pending, p.remotePeerID)
	}
	if b.byTransportID[p.transportID] == p {
		delete(b.byTransportID, p.transportID)
	}
}

// Run requests the local peer id and processes inbound events until ctx is
// done or the channel terminates.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.channel.Send(Message{Type: MsgGetPeerID}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-b.channel.Receive():
			if !ok {
				return nil
			}
			b.handleMessage(msg)
		}
	}
}

func (b *Bridge) handleMessage(msg Message) {
	switch msg.Type {
	case MsgPeerOpened:
		b.handlePeerOpened(msg)
	case MsgPeerClosed:
		b.handlePeerClosed(msg)
	case MsgConnOpened:
		b.handleConnOpened(msg)
	case MsgIncomingConnected:
		b.handleIncomingConnected(msg)
	case MsgConnData:
		b.handleConnData(msg)
	case MsgConnClosed:
		b.handleConnClosed(msg)
	default:
		b.logger.Debugf("ignoring message type %s", msg.Type)
	}
}

func (b *Bridge) handlePeerOpened(msg Message) {
	b.peerMu.Lock()
	defer b.peerMu.Unlock()

	if b.peerID == "" {
		b.peerID = msg.PeerID
		close(b.peerReady)
		b.logger.Infof("peer opened: %s", msg.PeerID)
	}
}

// handlePeerClosed drops every transport tied to the now-stale local peer id
// and asks for a fresh one.
func (b *Bridge) handlePeerClosed(msg Message) {
	b.peerMu.Lock()
	if b.peerID != msg.PeerID {
		b.peerMu.Unlock()
		return
	}
	b.peerID = ""
	b.peerReady = make(chan struct{})
	b.peerMu.Unlock()

	for _, transport := range b.transports.Values() {
		if transport.shutdown() {
			b.invokeCloseHandlers(transport)
		}
		b.transports.Delete(transport.ConnectionID())
		b.byRemote.Delete(transport.RemotePeerID())
	}

	b.logger.Warnf("peer closed: %s", msg.PeerID)
	if err := b.channel.Send(Message{Type: MsgGetPeerID}); err != nil {
		b.logger.Errorf("request new peer id: %v", err)
	}
}

func (b *Bridge) handleConnOpened(msg Message) {
	b.connMu.Lock()
	p, ok := b.byTransportID[msg.TransportID]
	if !ok {
		b.connMu.Unlock()
		b.logger.Warnf("connOpened with unknown transport id %s", msg.TransportID)
		return
	}
	delete(b.byTransportID, p.transportID)
	delete(b.pending, p.remotePeerID)

	transport := newTransport(
		b, p.transportID, msg.ConnectionID,
		msg.PeerID, p.remotePeerID, RoleInitiator,
	)
	p.transport = transport
	b.transports.Set(msg.ConnectionID, transport)
	b.byRemote.Set(p.remotePeerID, transport)
	b.connMu.Unlock()

	close(p.ready)
	b.invokeConnectHandlers(transport)
}

// handleIncomingConnected accepts every inbound connection automatically.
func (b *Bridge) handleIncomingConnected(msg Message) {
	transport := newTransport(
		b, xid.New().String(), msg.ConnectionID,
		msg.PeerID, msg.RemotePeerID, RoleResponder,
	)
	b.transports.Set(msg.ConnectionID, transport)
	b.byRemote.Set(msg.RemotePeerID, transport)

	b.invokeConnectHandlers(transport)
}

func (b *Bridge) handleConnData(msg Message) {
	transport, ok := b.transports.Get(msg.ConnectionID)
	if !ok {
		b.logger.Debugf("connData for unknown connection %s", msg.ConnectionID)
		return
	}
	transport.push(msg.Data)
}

func (b *Bridge) handleConnClosed(msg Message) {
	transport, ok := b.transports.Get(msg.ConnectionID)
	if !ok {
		return
	}
	b.transports.Delete(msg.ConnectionID)
	b.byRemote.Delete(transport.RemotePeerID())

	if transport.shutdown() {
		b.invokeCloseHandlers(transport)
	}
}

func (b *Bridge) invokeConnectHandlers(transport *Transport) {
	b.handlerMu.RLock()
	handlers := b.connectHandlers
	b.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler(transport)
	}
}

func (b *Bridge) invokeCloseHandlers(transport *Transport) {
	b.handlerMu.RLock()
	handlers := b.closeHandlers
	b.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler(transport)
	}
}

// Close closes the underlying channel.
func (b *Bridge) Close() error {
	return b.channel.Close()
}
