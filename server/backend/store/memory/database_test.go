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

package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-town/pigeon/server/backend/store"
	"github.com/muni-town/pigeon/server/backend/store/memory"
)

func setUpDocs(t *testing.T, ctx context.Context) store.Docs {
	db, err := memory.New()
	require.NoError(t, err)

	share, err := db.CreateShare(ctx, "test-share", true)
	require.NoError(t, err)

	docs, err := db.Docs(share.Tag)
	require.NoError(t, err)
	return docs
}

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("share and capability test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)

		share, err := db.CreateShare(ctx, "room", true)
		assert.NoError(t, err)
		assert.True(t, share.Owned)

		cp, err := db.MintCap(ctx, share.Tag, "key-alice", store.AccessWrite)
		assert.NoError(t, err)
		assert.Equal(t, share.Tag, cp.Share)

		caps, err := db.CapsFor(ctx, "key-alice")
		assert.NoError(t, err)
		assert.Len(t, caps, 1)

		_, err = db.MintCap(ctx, "unknown", "key-alice", store.AccessRead)
		assert.ErrorIs(t, err, store.ErrShareNotFound)

		shares, err := db.Shares(ctx)
		assert.NoError(t, err)
		assert.Len(t, shares, 1)
	})

	t.Run("minting for unowned share test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)

		share, err := db.CreateShare(ctx, "replica", false)
		require.NoError(t, err)

		_, err = db.MintCap(ctx, share.Tag, "key-alice", store.AccessRead)
		assert.ErrorIs(t, err, store.ErrShareNotOwned)
	})

	t.Run("capability import test", func(t *testing.T) {
		owner, err := memory.New()
		require.NoError(t, err)
		peer, err := memory.New()
		require.NoError(t, err)

		share, err := owner.CreateShare(ctx, "room", true)
		require.NoError(t, err)
		cp, err := owner.MintCap(ctx, share.Tag, "key-bob", store.AccessRead)
		require.NoError(t, err)

		imported, err := peer.ImportCap(ctx, cp.Export())
		assert.NoError(t, err)
		assert.Equal(t, share.Tag, imported.Share)
		assert.Equal(t, "key-bob", imported.Identity)

		// The importing peer now knows the share, unowned.
		shares, err := peer.Shares(ctx)
		assert.NoError(t, err)
		require.Len(t, shares, 1)
		assert.False(t, shares[0].Owned)

		_, err = peer.Docs(share.Tag)
		assert.NoError(t, err)
	})

	t.Run("unknown share docs test", func(t *testing.T) {
		db, err := memory.New()
		require.NoError(t, err)

		_, err = db.Docs("unknown")
		assert.ErrorIs(t, err, store.ErrShareNotFound)
	})

	t.Run("document ordering test", func(t *testing.T) {
		docs := setUpDocs(t, ctx)

		for i, ts := range []int64{300, 100, 200} {
			assert.NoError(t, docs.Set(ctx, store.DocInput{
				Identity:  "key-alice",
				Path:      store.PathOf("events", "timeline", fmt.Sprintf("doc-%d", i)),
				Payload:   []byte(fmt.Sprintf(`{"n":%d}`, i)),
				Timestamp: ts,
			}))
		}

		fetched, err := docs.QueryDocs(ctx, store.Query{
			PathPrefix: store.PathOf("events", "timeline"),
		})
		assert.NoError(t, err)
		require.Len(t, fetched, 3)
		assert.Equal(t, int64(100), fetched[0].Timestamp)
		assert.Equal(t, int64(200), fetched[1].Timestamp)
		assert.Equal(t, int64(300), fetched[2].Timestamp)

		reversed, err := docs.QueryDocs(ctx, store.Query{
			PathPrefix: store.PathOf("events", "timeline"),
			Descending: true,
		})
		assert.NoError(t, err)
		require.Len(t, reversed, 3)
		assert.Equal(t, int64(300), reversed[0].Timestamp)
		assert.Equal(t, int64(100), reversed[2].Timestamp)
	})

	t.Run("equal timestamps keep arrival order test", func(t *testing.T) {
		docs := setUpDocs(t, ctx)

		for i := 0; i < 3; i++ {
			assert.NoError(t, docs.Set(ctx, store.DocInput{
				Identity:  "key-alice",
				Path:      store.PathOf("events", "timeline", fmt.Sprintf("doc-%d", i)),
				Payload:   []byte(fmt.Sprintf(`{"n":%d}`, i)),
				Timestamp: 100,
			}))
		}

		fetched, err := docs.QueryDocs(ctx, store.Query{})
		assert.NoError(t, err)
		require.Len(t, fetched, 3)
		for i, doc := range fetched {
			assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), string(doc.Payload))
		}
	})

	t.Run("timestamp window test", func(t *testing.T) {
		docs := setUpDocs(t, ctx)

		for i := int64(1); i <= 5; i++ {
			require.NoError(t, docs.Set(ctx, store.DocInput{
				Identity:  "key-alice",
				Path:      store.PathOf("events", "timeline", fmt.Sprintf("doc-%d", i)),
				Timestamp: i * 100,
			}))
		}

		fetched, err := docs.QueryDocs(ctx, store.Query{
			TimestampGte: 200,
			TimestampLt:  400,
		})
		assert.NoError(t, err)
		require.Len(t, fetched, 2)
		assert.Equal(t, int64(200), fetched[0].Timestamp)
		assert.Equal(t, int64(300), fetched[1].Timestamp)

		reversed, err := docs.QueryDocs(ctx, store.Query{
			Descending:  true,
			TimestampLt: 400,
			Limit:       2,
		})
		assert.NoError(t, err)
		require.Len(t, reversed, 2)
		assert.Equal(t, int64(300), reversed[0].Timestamp)
		assert.Equal(t, int64(200), reversed[1].Timestamp)
	})

	t.Run("limit applies after path filter test", func(t *testing.T) {
		docs := setUpDocs(t, ctx)

		require.NoError(t, docs.Set(ctx, store.DocInput{
			Path:      store.PathOf("events", "state", "s1"),
			Timestamp: 100,
		}))
		require.NoError(t, docs.Set(ctx, store.DocInput{
			Path:      store.PathOf("events", "timeline", "t1"),
			Timestamp: 200,
		}))
		require.NoError(t, docs.Set(ctx, store.DocInput{
			Path:      store.PathOf("events", "timeline", "t2"),
			Timestamp: 300,
		}))

		fetched, err := docs.QueryDocs(ctx, store.Query{
			PathPrefix: store.PathOf("events", "timeline"),
			Limit:      2,
		})
		assert.NoError(t, err)
		require.Len(t, fetched, 2)
		assert.Equal(t, int64(200), fetched[0].Timestamp)
		assert.Equal(t, int64(300), fetched[1].Timestamp)
	})

	t.Run("latest document at path test", func(t *testing.T) {
		docs := setUpDocs(t, ctx)

		latest, err := docs.LatestDocAtPath(ctx, store.PathOf("self"))
		assert.NoError(t, err)
		assert.Nil(t, latest)

		require.NoError(t, docs.Set(ctx, store.DocInput{
			Path:      store.PathOf("self"),
			Payload:   []byte(`{"v":1}`),
			Timestamp: 100,
		}))
		require.NoError(t, docs.Set(ctx, store.DocInput{
			Path:      store.PathOf("self"),
			Payload:   []byte(`{"v":2}`),
			Timestamp: 200,
		}))

		latest, err = docs.LatestDocAtPath(ctx, store.PathOf("self"))
		assert.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, `{"v":2}`, string(latest.Payload))
	})
}
