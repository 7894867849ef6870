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

// Package memory implements the document store interface with an in-memory
// database.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/xid"

	"github.com/muni-town/pigeon/server/backend/store"
)

// shareInfo is a share record. The signing secret is only set for owned
// shares.
type shareInfo struct {
	Tag       string
	Name      string
	Owned     bool
	Secret    []byte
	CreatedAt int64
}

// docInfo is a document record. PathKey is the slash-joined path, kept as a
// separate field so memdb can index it.
type docInfo struct {
	ID        string
	Share     string
	Path      store.Path
	PathKey   string
	Payload   []byte
	Timestamp int64
	Seq       int64
	Identity  string
}

func (i *docInfo) toDocument() *store.Document {
	return &store.Document{
		Share:     i.Share,
		Path:      i.Path,
		Payload:   i.Payload,
		Timestamp: i.Timestamp,
		Seq:       i.Seq,
		Identity:  i.Identity,
	}
}

// DB is an in-memory database backed by memdb. It implements store.Store.
type DB struct {
	db  *memdb.MemDB
	seq atomic.Int64
}

// New creates a new instance of DB.
func New() (*DB, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database. Memory-backed stores hold no external
// resources.
func (d *DB) Close() error {
	return nil
}

// CreateShare creates a new share. Owned shares receive a fresh signing
// secret.
func (d *DB) CreateShare(_ context.Context, name string, owned bool) (*store.Share, error) {
	info := &shareInfo{
		Tag:       xid.New().String(),
		Name:      name,
		Owned:     owned,
		CreatedAt: time.Now().UnixMilli(),
	}
	if owned {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate share secret: %w", err)
		}
		info.Secret = secret
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblShares, info); err != nil {
		return nil, fmt.Errorf("insert share: %w", err)
	}
	txn.Commit()

	return info.toShare(), nil
}

func (i *shareInfo) toShare() *store.Share {
	return &store.Share{
		Tag:       i.Tag,
		Name:      i.Name,
		Owned:     i.Owned,
		CreatedAt: i.CreatedAt,
	}
}

// Shares returns all locally known shares.
func (d *DB) Shares(_ context.Context) ([]*store.Share, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblShares, "id")
	if err != nil {
		return nil, fmt.Errorf("fetch shares: %w", err)
	}

	var shares []*store.Share
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		shares = append(shares, raw.(*shareInfo).toShare())
	}
	return shares, nil
}

// MintCap mints a root capability of the given share for the given identity.
func (d *DB) MintCap(
	_ context.Context,
	share, identity string,
	level store.AccessLevel,
) (*store.Capability, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblShares, "id", share)
	if err != nil {
		return nil, fmt.Errorf("find share %s: %w", share, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", share, store.ErrShareNotFound)
	}

	info := raw.(*shareInfo)
	if !info.Owned || info.Secret == nil {
		return nil, fmt.Errorf("%s: %w", share, store.ErrShareNotOwned)
	}

	cp, err := store.MintCapability(share, identity, level, "", info.Secret)
	if err != nil {
		return nil, err
	}
	if err := txn.Insert(tblCaps, cp); err != nil {
		return nil, fmt.Errorf("insert capability: %w", err)
	}
	txn.Commit()

	return cp, nil
}

// ImportCap imports an exported capability. The share becomes locally known
// as an unowned share when it was not known before.
func (d *DB) ImportCap(_ context.Context, raw []byte) (*store.Capability, error) {
	cp, err := store.ParseCapability(raw)
	if err != nil {
		return nil, err
	}

	txn := d.db.Txn(true)
	defer txn.Abort()

	rawShare, err := txn.First(tblShares, "id", cp.Share)
	if err != nil {
		return nil, fmt.Errorf("find share %s: %w", cp.Share, err)
	}
	if rawShare == nil {
		if err := txn.Insert(tblShares, &shareInfo{
			Tag:       cp.Share,
			Owned:     false,
			CreatedAt: time.Now().UnixMilli(),
		}); err != nil {
			return nil, fmt.Errorf("insert share: %w", err)
		}
	} else if secret := rawShare.(*shareInfo).Secret; secret != nil {
		// The share is locally owned, so the import can be verified and the
		// capability becomes delegable.
		if err := cp.Verify(secret); err != nil {
			return nil, err
		}
		cp.AdoptSecret(secret)
	}

	if err := txn.Insert(tblCaps, cp); err != nil {
		return nil, fmt.Errorf("insert capability: %w", err)
	}
	txn.Commit()

	return cp, nil
}

// CapsFor returns all locally held capabilities of the given identity.
func (d *DB) CapsFor(_ context.Context, identity string) ([]*store.Capability, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblCaps, "identity", identity)
	if err != nil {
		return nil, fmt.Errorf("fetch capabilities of %s: %w", identity, err)
	}

	var caps []*store.Capability
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		caps = append(caps, raw.(*store.Capability))
	}
	return caps, nil
}

// Docs returns the document access of the given share.
func (d *DB) Docs(share string) (store.Docs, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblShares, "id", share)
	if err != nil {
		return nil, fmt.Errorf("find share %s: %w", share, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", share, store.ErrShareNotFound)
	}

	return &shareDocs{db: d, share: share}, nil
}

// shareDocs gives access to the documents of one share.
type shareDocs struct {
	db    *DB
	share string
}

// Set appends a new document. Writes in the same millisecond are kept in
// arrival order by the sequence counter.
func (s *shareDocs) Set(_ context.Context, input store.DocInput) error {
	info := &docInfo{
		ID:        xid.New().String(),
		Share:     s.share,
		Path:      input.Path,
		PathKey:   input.Path.String(),
		Payload:   input.Payload,
		Timestamp: input.Timestamp,
		Seq:       s.db.seq.Add(1),
		Identity:  input.Identity,
	}

	txn := s.db.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblDocuments, info); err != nil {
		return fmt.Errorf("insert document at %s: %w", info.PathKey, err)
	}
	txn.Commit()

	return nil
}

// QueryDocs returns the documents matching the given query, ordered by
// (timestamp, seq).
func (s *shareDocs) QueryDocs(_ context.Context, query store.Query) ([]*store.Document, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	var iter memdb.ResultIterator
	var err error
	if query.Descending {
		// The upper bound is exclusive, so the scan starts just below it.
		upperTS := int64(math.MaxInt64)
		if query.TimestampLt > 0 {
			upperTS = query.TimestampLt - 1
		}
		iter, err = txn.ReverseLowerBound(
			tblDocuments, "share_ts",
			s.share, upperTS, int64(math.MaxInt64),
		)
	} else {
		iter, err = txn.LowerBound(
			tblDocuments, "share_ts",
			s.share, query.TimestampGte, int64(0),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch documents of %s: %w", s.share, err)
	}

	var docs []*store.Document
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info := raw.(*docInfo)
		if info.Share != s.share {
			break
		}
		if query.Descending {
			if query.TimestampGte > 0 && info.Timestamp < query.TimestampGte {
				break
			}
		} else if query.TimestampLt > 0 && info.Timestamp >= query.TimestampLt {
			break
		}
		if !info.Path.HasPrefix(query.PathPrefix) {
			continue
		}

		docs = append(docs, info.toDocument())
		if query.Limit > 0 && len(docs) == query.Limit {
			break
		}
	}
	return docs, nil
}

// LatestDocAtPath returns the document with the greatest timestamp at the
// exact given path, or nil when none exists.
func (s *shareDocs) LatestDocAtPath(_ context.Context, path store.Path) (*store.Document, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblDocuments, "share_path", s.share, path.String())
	if err != nil {
		return nil, fmt.Errorf("fetch documents at %s: %w", path, err)
	}

	var latest *docInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info := raw.(*docInfo)
		if latest == nil || info.Timestamp > latest.Timestamp ||
			(info.Timestamp == latest.Timestamp && info.Seq > latest.Seq) {
			latest = info
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.toDocument(), nil
}
