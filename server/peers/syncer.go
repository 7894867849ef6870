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

import "context"

// Syncer replicates shared documents over one transport. The replication
// wire codec is not part of this package; implementations use the
// transport's role for symmetry breaking and its chunk sequence for framing.
type Syncer interface {
	// Sync runs a replication session over the given transport until the
	// transport closes or ctx is done.
	Sync(ctx context.Context, transport *Transport) error
}
