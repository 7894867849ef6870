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

// Package store defines the contract of the capability-addressed document
// store backing room replication. A share is a replication namespace holding
// append-only, path-addressed, timestamp-ordered documents; access to a
// share is granted by delegable capabilities.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrShareNotFound occurs when the given share does not exist.
	ErrShareNotFound = errors.New("share not found")

	// ErrShareNotOwned occurs when minting a capability for a share whose
	// signing secret is not locally known.
	ErrShareNotOwned = errors.New("share not owned")

	// ErrCapEscalation occurs when a delegation requests broader access than
	// its parent capability grants.
	ErrCapEscalation = errors.New("capability escalation")

	// ErrCapNotDelegable occurs when delegating a capability whose share
	// secret is not locally known.
	ErrCapNotDelegable = errors.New("capability not delegable")

	// ErrDocNotFound occurs when the given document does not exist.
	ErrDocNotFound = errors.New("document not found")
)

// AccessLevel is the access level granted by a capability.
type AccessLevel string

// Below are the access levels.
const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

// rank orders access levels for escalation checks.
func (l AccessLevel) rank() int {
	if l == AccessWrite {
		return 2
	}
	return 1
}

// Path is an ordered sequence of path segments addressing a document inside
// a share.
type Path []string

// PathOf builds a path from the given segments.
func PathOf(segments ...string) Path {
	return Path(segments)
}

// String returns the slash-joined form of the path.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// HasPrefix returns whether the path starts with the given prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, segment := range prefix {
		if p[i] != segment {
			return false
		}
	}
	return true
}

// Share is a replication namespace. A room is a share carrying a room-marker
// document at the `self` path.
type Share struct {
	// Tag is the opaque identifier of the share.
	Tag string

	// Name is the human-readable name given at creation.
	Name string

	// Owned is whether this peer created the share and holds its signing
	// secret.
	Owned bool

	// CreatedAt is the creation time in milliseconds since the epoch.
	CreatedAt int64
}

// Document is an immutable, path-addressed, timestamped payload stored in a
// share. Documents are never mutated in place; a new document may be written
// at a path that supersedes an older one.
type Document struct {
	Share     string
	Path      Path
	Payload   []byte
	Timestamp int64
	Seq       int64
	Identity  string
}

// DocInput is the input of a document write.
type DocInput struct {
	Identity  string
	Path      Path
	Payload   []byte
	Timestamp int64
}

// Query selects documents of a share ordered by (timestamp, seq).
// TimestampGte and TimestampLt of zero are unbounded; Limit of zero is
// unlimited.
type Query struct {
	PathPrefix   Path
	Descending   bool
	TimestampGte int64
	TimestampLt  int64
	Limit        int
}

// Docs gives access to the documents of one share.
type Docs interface {
	// Set appends a new document. The document is never mutated afterwards.
	Set(ctx context.Context, input DocInput) error

	// QueryDocs returns the documents matching the given query, ordered by
	// (timestamp, seq), descending when requested.
	QueryDocs(ctx context.Context, query Query) ([]*Document, error)

	// LatestDocAtPath returns the document with the greatest timestamp at
	// the exact given path, or nil when none exists.
	LatestDocAtPath(ctx context.Context, path Path) (*Document, error)
}

// Store is a peer-level handle of the document store: it manages shares,
// capabilities and per-share document access.
type Store interface {
	// CreateShare creates a new share and its signing secret.
	CreateShare(ctx context.Context, name string, owned bool) (*Share, error)

	// Shares returns all locally known shares.
	Shares(ctx context.Context) ([]*Share, error)

	// MintCap mints a root capability of the given share for the given
	// identity. The share must be owned.
	MintCap(ctx context.Context, share, identity string, level AccessLevel) (*Capability, error)

	// ImportCap imports an exported capability, making its share locally
	// known.
	ImportCap(ctx context.Context, raw []byte) (*Capability, error)

	// CapsFor returns all locally held capabilities of the given identity.
	CapsFor(ctx context.Context, identity string) ([]*Capability, error)

	// Docs returns the document access of the given share.
	Docs(share string) (Docs, error)

	// Close closes the store.
	Close() error
}
