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

// Package mongo implements the document store interface using MongoDB.
package mongo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/muni-town/pigeon/server/backend/store"
	"github.com/muni-town/pigeon/server/logging"
)

// shareInfo is the persisted form of a share.
type shareInfo struct {
	Tag       string `bson:"tag"`
	Name      string `bson:"name"`
	Owned     bool   `bson:"owned"`
	Secret    []byte `bson:"secret,omitempty"`
	CreatedAt int64  `bson:"created_at"`
}

func (i *shareInfo) toShare() *store.Share {
	return &store.Share{
		Tag:       i.Tag,
		Name:      i.Name,
		Owned:     i.Owned,
		CreatedAt: i.CreatedAt,
	}
}

// capInfo is the persisted form of a capability. The signed token is the
// source of truth; the other fields are kept for indexing.
type capInfo struct {
	ID       string `bson:"id"`
	Share    string `bson:"share"`
	Identity string `bson:"identity"`
	Level    string `bson:"level"`
	Token    string `bson:"token"`
}

// docInfo is the persisted form of a document.
type docInfo struct {
	Share     string   `bson:"share"`
	Path      []string `bson:"path"`
	PathKey   string   `bson:"path_key"`
	Payload   []byte   `bson:"payload"`
	Timestamp int64    `bson:"timestamp"`
	Seq       int64    `bson:"seq"`
	Identity  string   `bson:"identity"`
}

func (i *docInfo) toDocument() *store.Document {
	return &store.Document{
		Share:     i.Share,
		Path:      store.Path(i.Path),
		Payload:   i.Payload,
		Timestamp: i.Timestamp,
		Seq:       i.Seq,
		Identity:  i.Identity,
	}
}

// Client is a client that connects to Mongo DB and reads or saves Pigeon
// data. It implements store.Store.
type Client struct {
	config *Config
	client *mongo.Client
	db     *mongo.Database
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancel()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(conf.PigeonDatabase)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof(
		"MongoDB connected, URI: %s, DB: %s",
		conf.ConnectionURI,
		conf.PigeonDatabase,
	)

	return &Client{
		config: conf,
		client: client,
		db:     db,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect from mongo: %w", err)
	}

	return nil
}

// CreateShare creates a new share. Owned shares receive a fresh signing
// secret.
func (c *Client) CreateShare(ctx context.Context, name string, owned bool) (*store.Share, error) {
	info := &shareInfo{
		Tag:       bson.NewObjectID().Hex(),
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

	if _, err := c.db.Collection(ColShares).InsertOne(ctx, info); err != nil {
		return nil, fmt.Errorf("insert share: %w", err)
	}

	return info.toShare(), nil
}

// Shares returns all locally known shares.
func (c *Client) Shares(ctx context.Context) ([]*store.Share, error) {
	cursor, err := c.db.Collection(ColShares).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("fetch shares: %w", err)
	}

	var infos []*shareInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode shares: %w", err)
	}

	var shares []*store.Share
	for _, info := range infos {
		shares = append(shares, info.toShare())
	}
	return shares, nil
}

func (c *Client) findShare(ctx context.Context, tag string) (*shareInfo, error) {
	result := c.db.Collection(ColShares).FindOne(ctx, bson.M{"tag": tag})

	info := &shareInfo{}
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", tag, store.ErrShareNotFound)
		}
		return nil, fmt.Errorf("decode share %s: %w", tag, err)
	}

	return info, nil
}

func (c *Client) insertCap(ctx context.Context, cp *store.Capability) error {
	if _, err := c.db.Collection(ColCaps).InsertOne(ctx, &capInfo{
		ID:       cp.ID,
		Share:    cp.Share,
		Identity: cp.Identity,
		Level:    string(cp.Level),
		Token:    cp.Token(),
	}); err != nil {
		return fmt.Errorf("insert capability: %w", err)
	}

	return nil
}

// MintCap mints a root capability of the given share for the given identity.
func (c *Client) MintCap(
	ctx context.Context,
	share, identity string,
	level store.AccessLevel,
) (*store.Capability, error) {
	info, err := c.findShare(ctx, share)
	if err != nil {
		return nil, err
	}
	if !info.Owned || info.Secret == nil {
		return nil, fmt.Errorf("%s: %w", share, store.ErrShareNotOwned)
	}

	cp, err := store.MintCapability(share, identity, level, "", info.Secret)
	if err != nil {
		return nil, err
	}
	if err := c.insertCap(ctx, cp); err != nil {
		return nil, err
	}

	return cp, nil
}

// ImportCap imports an exported capability. The share becomes locally known
// as an unowned share when it was not known before.
func (c *Client) ImportCap(ctx context.Context, raw []byte) (*store.Capability, error) {
	cp, err := store.ParseCapability(raw)
	if err != nil {
		return nil, err
	}

	info, err := c.findShare(ctx, cp.Share)
	if err != nil {
		if !errors.Is(err, store.ErrShareNotFound) {
			return nil, err
		}
		if _, err := c.db.Collection(ColShares).InsertOne(ctx, &shareInfo{
			Tag:       cp.Share,
			Owned:     false,
			CreatedAt: time.Now().UnixMilli(),
		}); err != nil {
			return nil, fmt.Errorf("insert share: %w", err)
		}
	} else if info.Secret != nil {
		if err := cp.Verify(info.Secret); err != nil {
			return nil, err
		}
		cp.AdoptSecret(info.Secret)
	}

	if err := c.insertCap(ctx, cp); err != nil {
		return nil, err
	}

	return cp, nil
}

// CapsFor returns all locally held capabilities of the given identity.
func (c *Client) CapsFor(ctx context.Context, identity string) ([]*store.Capability, error) {
	cursor, err := c.db.Collection(ColCaps).Find(ctx, bson.M{"identity": identity})
	if err != nil {
		return nil, fmt.Errorf("fetch capabilities of %s: %w", identity, err)
	}

	var infos []*capInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}

	var caps []*store.Capability
	for _, info := range infos {
		cp, err := store.ParseCapability([]byte(info.Token))
		if err != nil {
			return nil, err
		}
		caps = append(caps, cp)
	}
	return caps, nil
}

// Docs returns the document access of the given share.
func (c *Client) Docs(share string) (store.Docs, error) {
	return &shareDocs{client: c, share: share}, nil
}

// nextSeq fetches the next sequence of the counter, creating it if it does
// not exist.
func (c *Client) nextSeq(ctx context.Context) (int64, error) {
	result := c.db.Collection(ColCounters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": "doc_seq"},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&counter); err != nil {
		return 0, fmt.Errorf("fetch next sequence: %w", err)
	}

	return counter.Seq, nil
}

// shareDocs gives access to the documents of one share.
type shareDocs struct {
	client *Client
	share  string
}

// Set appends a new document.
func (s *shareDocs) Set(ctx context.Context, input store.DocInput) error {
	seq, err := s.client.nextSeq(ctx)
	if err != nil {
		return err
	}

	if _, err := s.client.db.Collection(ColDocuments).InsertOne(ctx, &docInfo{
		Share:     s.share,
		Path:      input.Path,
		PathKey:   input.Path.String(),
		Payload:   input.Payload,
		Timestamp: input.Timestamp,
		Seq:       seq,
		Identity:  input.Identity,
	}); err != nil {
		return fmt.Errorf("insert document at %s: %w", input.Path, err)
	}

	return nil
}

// QueryDocs returns the documents matching the given query, ordered by
// (timestamp, seq).
func (s *shareDocs) QueryDocs(ctx context.Context, query store.Query) ([]*store.Document, error) {
	filter := bson.M{"share": s.share}

	window := bson.M{}
	if query.TimestampGte > 0 {
		window["$gte"] = query.TimestampGte
	}
	if query.TimestampLt > 0 {
		window["$lt"] = query.TimestampLt
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}

	if len(query.PathPrefix) > 0 {
		prefix := regexp.QuoteMeta(strings.Join(query.PathPrefix, "/"))
		filter["path_key"] = bson.M{"$regex": "^" + prefix + "(/|$)"}
	}

	order := int32(1)
	if query.Descending {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: order},
		{Key: "seq", Value: order},
	})
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := s.client.db.Collection(ColDocuments).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch documents of %s: %w", s.share, err)
	}

	var infos []*docInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	var docs []*store.Document
	for _, info := range infos {
		docs = append(docs, info.toDocument())
	}
	return docs, nil
}

// LatestDocAtPath returns the document with the greatest timestamp at the
// exact given path, or nil when none exists.
func (s *shareDocs) LatestDocAtPath(ctx context.Context, path store.Path) (*store.Document, error) {
	result := s.client.db.Collection(ColDocuments).FindOne(
		ctx,
		bson.M{"share": s.share, "path_key": path.String()},
		options.FindOne().SetSort(bson.D{
			{Key: "timestamp", Value: int32(-1)},
			{Key: "seq", Value: int32(-1)},
		}),
	)

	info := &docInfo{}
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode document at %s: %w", path, err)
	}

	return info.toDocument(), nil
}
