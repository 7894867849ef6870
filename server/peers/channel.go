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
	"errors"
	"sync"
)

// ErrChannelClosed occurs when sending on a closed channel.
var ErrChannelClosed = errors.New("channel closed")

// Channel is the cross-context message channel between the bridge and the
// process owning the peer-connection library.
type Channel interface {
	// Send delivers a message to the other side.
	Send(msg Message) error

	// Receive returns the stream of inbound messages. The channel is closed
	// when the underlying connection is gone.
	Receive() <-chan Message

	// Close closes the channel.
	Close() error
}

// PipeChannel is an in-memory Channel endpoint. Two endpoints created by
// Pipe are connected back to back and share a close signal, so closing
// either endpoint terminates both.
type PipeChannel struct {
	out chan Message
	in  chan Message

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe creates a connected pair of in-memory channels.
func Pipe() (*PipeChannel, *PipeChannel) {
	a := make(chan Message, 128)
	b := make(chan Message, 128)
	done := make(chan struct{})
	once := &sync.Once{}

	return &PipeChannel{out: a, in: b, done: done, closeOnce: once},
		&PipeChannel{out: b, in: a, done: done, closeOnce: once}
}

// Send delivers a message to the other endpoint.
func (c *PipeChannel) Send(msg Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.mu.Unlock()

	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

// Receive returns the stream of inbound messages.
func (c *PipeChannel) Receive() <-chan Message {
	return c.in
}

// Done is closed once either endpoint closes.
func (c *PipeChannel) Done() <-chan struct{} {
	return c.done
}

// Close closes both endpoints of the pipe.
func (c *PipeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
