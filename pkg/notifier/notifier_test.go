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

package notifier_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/muni-town/pigeon/pkg/notifier"
)

func TestNotifier(t *testing.T) {
	t.Run("notify wakes all current waiters", func(t *testing.T) {
		n := notifier.New()

		const waiters = 5
		var wg sync.WaitGroup
		woken := make(chan struct{}, waiters)

		ready := make(chan struct{})
		for i := 0; i < waiters; i++ {
			wg.Add(1)
			ch := n.Wait()
			go func() {
				defer wg.Done()
				ready <- struct{}{}
				<-ch
				woken <- struct{}{}
			}()
		}
		for i := 0; i < waiters; i++ {
			<-ready
		}

		n.Notify()
		wg.Wait()
		assert.Len(t, woken, waiters)
	})

	t.Run("notify before wait is not observed later", func(t *testing.T) {
		n := notifier.New()
		n.Notify()

		select {
		case <-n.Wait():
			assert.Fail(t, "waiter resolved by an earlier notify")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("each notify only wakes its own waiters", func(t *testing.T) {
		n := notifier.New()

		first := n.Wait()
		n.Notify()
		<-first

		second := n.Wait()
		select {
		case <-second:
			assert.Fail(t, "second waiter resolved without a second notify")
		case <-time.After(50 * time.Millisecond):
		}

		n.Notify()
		select {
		case <-second:
		case <-time.After(time.Second):
			assert.Fail(t, "second waiter not woken by second notify")
		}
	})
}
