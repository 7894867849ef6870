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

// Package notifier provides a broadcast wake-up signal used to drive
// long-poll waits.
package notifier

import "sync"

// Notifier is a single-slot wake-up signal. Notify wakes every goroutine
// currently suspended on a channel returned by Wait. A Wait entered after a
// Notify does not observe that earlier Notify; only notifications issued
// while the waiter is suspended are delivered.
type Notifier struct {
	mu      sync.Mutex
	pending chan struct{}
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		pending: make(chan struct{}),
	}
}

// Wait returns a channel that is closed by the next call to Notify. The
// returned channel is shared by all goroutines waiting at the same time, so a
// single Notify wakes them all.
func (n *Notifier) Wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.pending
}

// Notify wakes every waiter holding the current wait channel and installs a
// fresh one, so that later waiters are woken only by a later Notify. Calling
// Notify with no waiters is a no-op.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	close(n.pending)
	n.pending = make(chan struct{})
}
