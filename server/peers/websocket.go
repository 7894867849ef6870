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
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/muni-town/pigeon/server/logging"
)

// WebsocketChannel is a Channel over a websocket connection to the process
// owning the peer-connection library. Messages are JSON-encoded.
type WebsocketChannel struct {
	conn   *websocket.Conn
	recv   chan Message
	logger logging.Logger

	writeMu sync.Mutex
	closed  bool
}

// DialChannel dials the given websocket URL and returns a channel over it.
func DialChannel(ctx context.Context, url string) (*WebsocketChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}

	return NewWebsocketChannel(conn), nil
}

// NewWebsocketChannel wraps an established websocket connection.
func NewWebsocketChannel(conn *websocket.Conn) *WebsocketChannel {
	c := &WebsocketChannel{
		conn:   conn,
		recv:   make(chan Message, 128),
		logger: logging.New("ws-channel"),
	}
	go c.readLoop()
	return c
}

func (c *WebsocketChannel) readLoop() {
	defer close(c.recv)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warnf("read bridge message: %v", err)
			}
			return
		}
		c.recv <- msg
	}
}

// Send delivers a message to the other side.
func (c *WebsocketChannel) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write bridge message: %w", err)
	}
	return nil
}

// Receive returns the stream of inbound messages. The channel is closed when
// the websocket connection is gone.
func (c *WebsocketChannel) Receive() <-chan Message {
	return c.recv
}

// Close closes the websocket connection.
func (c *WebsocketChannel) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close bridge connection: %w", err)
	}
	return nil
}
