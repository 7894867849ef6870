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
	"io"
	"sync"
)

// Role is the symmetry-breaking designation of one end of a replication
// connection. It does not affect byte framing.
type Role string

// Below are the transport roles.
const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Transport is a byte-oriented duplex channel over one bridge connection.
// Received chunks are queued in arrival order; the bridge is the sole writer
// of the queue and the replication protocol the sole reader.
type Transport struct {
	id           string
	connectionID string
	peerID       string
	remotePeerID string
	role         Role

	bridge *Bridge

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	wake   chan struct{}
}

func newTransport(bridge *Bridge, id, connectionID, peerID, remotePeerID string, role Role) *Transport {
	return &Transport{
		id:           id,
		connectionID: connectionID,
		peerID:       peerID,
		remotePeerID: remotePeerID,
		role:         role,
		bridge:       bridge,
		wake:         make(chan struct{}),
	}
}

// ID returns the correlation id the transport was created with.
func (t *Transport) ID() string {
	return t.id
}

// ConnectionID returns the id of the underlying connection.
func (t *Transport) ConnectionID() string {
	return t.connectionID
}

// RemotePeerID returns the peer id of the other end.
func (t *Transport) RemotePeerID() string {
	return t.remotePeerID
}

// Role returns the role of this end.
func (t *Transport) Role() Role {
	return t.role
}

// Closed returns whether the transport has been closed by either side.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send enqueues bytes for delivery. Delivery is fire-and-forget; there is no
// acknowledgment.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return io.ErrClosedPipe
	}
	t.mu.Unlock()

	return t.bridge.channel.Send(Message{
		Type:         MsgSendData,
		PeerID:       t.peerID,
		ConnectionID: t.connectionID,
		Data:         data,
	})
}

// Next returns the next received chunk in arrival order. It blocks until a
// chunk arrives and returns io.EOF once the transport is closed and the
// queue drained.
func (t *Transport) Next() ([]byte, error) {
	for {
		t.mu.Lock()
		if len(t.queue) > 0 {
			data := t.queue[0]
			t.queue = t.queue[1:]
			t.mu.Unlock()
			return data, nil
		}
		if t.closed {
			t.mu.Unlock()
			return nil, io.EOF
		}
		wake := t.wake
		t.mu.Unlock()

		<-wake
	}
}

// Chunks returns the received chunks as a channel. The channel preserves
// arrival order and is closed once the transport is closed and drained.
func (t *Transport) Chunks() <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			data, err := t.Next()
			if err != nil {
				return
			}
			out <- data
		}
	}()
	return out
}

// Close sets the closed flag locally and tells the other side to close the
// connection. Buffered-but-unread data on the remote is not guaranteed to be
// dropped.
func (t *Transport) Close() error {
	if !t.shutdown() {
		return nil
	}

	return t.bridge.channel.Send(Message{
		Type:         MsgCloseConn,
		PeerID:       t.peerID,
		ConnectionID: t.connectionID,
	})
}

// push appends a received chunk. Only the bridge calls this.
func (t *Transport) push(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.queue = append(t.queue, data)
	close(t.wake)
	t.wake = make(chan struct{})
}

// shutdown marks the transport closed and wakes blocked readers. It returns
// false when the transport was already closed.
func (t *Transport) shutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.closed = true
	close(t.wake)
	return true
}
