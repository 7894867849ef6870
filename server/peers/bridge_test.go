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

package peers_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-town/pigeon/server/peers"
)

// fakeProvider emulates the process owning the peer-connection library on
// the far side of the bridge channel.
type fakeProvider struct {
	channel *peers.PipeChannel
	peerID  string

	mu       sync.Mutex
	connSeq  int
	received []peers.Message
}

func runProvider(ctx context.Context, channel *peers.PipeChannel, peerID string) *fakeProvider {
	p := &fakeProvider{channel: channel, peerID: peerID}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-channel.Receive():
				if !ok {
					return
				}
				p.handle(msg)
			}
		}
	}()
	return p
}

func (p *fakeProvider) handle(msg peers.Message) {
	p.mu.Lock()
	p.received = append(p.received, msg)
	p.mu.Unlock()

	switch msg.Type {
	case peers.MsgGetPeerID:
		_ = p.channel.Send(peers.Message{Type: peers.MsgPeerOpened, PeerID: p.peerID})
	case peers.MsgConnect:
		p.mu.Lock()
		p.connSeq++
		connID := fmt.Sprintf("conn-%d", p.connSeq)
		p.mu.Unlock()

		_ = p.channel.Send(peers.Message{
			Type:         peers.MsgConnOpened,
			PeerID:       p.peerID,
			ConnectionID: connID,
			TransportID:  msg.TransportID,
		})
	}
}

func (p *fakeProvider) messagesOf(msgType peers.MessageType) []peers.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	var msgs []peers.Message
	for _, msg := range p.received {
		if msg.Type == msgType {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func setUpBridge(t *testing.T) (*peers.Bridge, *fakeProvider, *peers.PipeChannel) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	local, remote := peers.Pipe()
	provider := runProvider(ctx, remote, "peer-local")

	bridge := peers.NewBridge(local)
	go func() {
		_ = bridge.Run(ctx)
	}()

	return bridge, provider, remote
}

func TestBridge(t *testing.T) {
	t.Run("peer id test", func(t *testing.T) {
		bridge, _, _ := setUpBridge(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		peerID, err := bridge.PeerID(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "peer-local", peerID)
	})

	t.Run("connect deduplicates by remote peer test", func(t *testing.T) {
		bridge, provider, _ := setUpBridge(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		var wg sync.WaitGroup
		transports := make([]*peers.Transport, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				transport, err := bridge.Connect(ctx, "peer-remote")
				assert.NoError(t, err)
				transports[i] = transport
			}(i)
		}
		wg.Wait()

		assert.Same(t, transports[0], transports[1])
		assert.Equal(t, peers.RoleInitiator, transports[0].Role())
		assert.Equal(t, "peer-remote", transports[0].RemotePeerID())
		assert.Len(t, provider.messagesOf(peers.MsgConnect), 1)

		// A connect to an already-open remote returns the live transport.
		again, err := bridge.Connect(ctx, "peer-remote")
		assert.NoError(t, err)
		assert.Same(t, transports[0], again)
	})

	t.Run("data delivery order test", func(t *testing.T) {
		bridge, _, remote := setUpBridge(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		transport, err := bridge.Connect(ctx, "peer-remote")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.NoError(t, remote.Send(peers.Message{
				Type:         peers.MsgConnData,
				ConnectionID: transport.ConnectionID(),
				Data:         []byte{byte(i)},
			}))
		}
		require.NoError(t, remote.Send(peers.Message{
			Type:         peers.MsgConnClosed,
			ConnectionID: transport.ConnectionID(),
		}))

		for i := 0; i < 3; i++ {
			chunk, err := transport.Next()
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i)}, chunk)
		}
		_, err = transport.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("incoming connection auto-accept test", func(t *testing.T) {
		bridge, _, remote := setUpBridge(t)

		accepted := make(chan *peers.Transport, 1)
		bridge.OnConnect(func(transport *peers.Transport) {
			accepted <- transport
		})

		require.NoError(t, remote.Send(peers.Message{
			Type:         peers.MsgIncomingConnected,
			PeerID:       "peer-local",
			ConnectionID: "conn-in",
			RemotePeerID: "peer-far",
		}))

		select {
		case transport := <-accepted:
			assert.Equal(t, peers.RoleResponder, transport.Role())
			assert.Equal(t, "peer-far", transport.RemotePeerID())
		case <-time.After(time.Second):
			t.Fatal("no incoming transport accepted")
		}
	})

	t.Run("send emits sendData test", func(t *testing.T) {
		bridge, provider, _ := setUpBridge(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		transport, err := bridge.Connect(ctx, "peer-remote")
		require.NoError(t, err)
		require.NoError(t, transport.Send([]byte("hello")))

		assert.Eventually(t, func() bool {
			msgs := provider.messagesOf(peers.MsgSendData)
			return len(msgs) == 1 && string(msgs[0].Data) == "hello"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("close handler test", func(t *testing.T) {
		bridge, _, remote := setUpBridge(t)

		closed := make(chan *peers.Transport, 1)
		bridge.OnClose(func(transport *peers.Transport) {
			closed <- transport
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		transport, err := bridge.Connect(ctx, "peer-remote")
		require.NoError(t, err)

		require.NoError(t, remote.Send(peers.Message{
			Type:         peers.MsgConnClosed,
			ConnectionID: transport.ConnectionID(),
		}))

		select {
		case got := <-closed:
			assert.Same(t, transport, got)
			assert.True(t, transport.Closed())
		case <-time.After(time.Second):
			t.Fatal("close handler not invoked")
		}
	})
}
