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

package types

import "errors"

var (
	// ErrNotAuthenticated occurs when an operation requiring an active
	// identity is called without one. It is surfaced to the caller and never
	// retried.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRoomNotFound occurs when the given room does not exist. Pagination
	// callers usually treat it as an empty page instead of a failure.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInviteNotFound occurs when the given invite does not exist.
	ErrInviteNotFound = errors.New("invite not found")

	// ErrInviteConsumed occurs when an invite is consumed more than once.
	ErrInviteConsumed = errors.New("invite already consumed")
)
