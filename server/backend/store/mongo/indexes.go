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

package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// ColShares represents the shares collection in the database.
	ColShares = "shares"
	// ColCaps represents the capabilities collection in the database.
	ColCaps = "capabilities"
	// ColDocuments represents the documents collection in the database.
	ColDocuments = "documents"
	// ColCounters represents the counters collection in the database.
	ColCounters = "counters"
)

// Collections represents the list of all collections in the database.
var Collections = []string{
	ColShares,
	ColCaps,
	ColDocuments,
	ColCounters,
}

type collectionInfo struct {
	name    string
	indexes []mongo.IndexModel
}

// Below are names and indexes information of Collections that store Pigeon
// data.
var collectionInfos = []collectionInfo{
	{
		name: ColShares,
		indexes: []mongo.IndexModel{{
			Keys:    bson.D{{Key: "tag", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		}},
	},
	{
		name: ColCaps,
		indexes: []mongo.IndexModel{{
			Keys:    bson.D{{Key: "id", Value: int32(1)}},
			Options: options.Index().SetUnique(true),
		}, {
			Keys: bson.D{{Key: "identity", Value: int32(1)}},
		}, {
			Keys: bson.D{{Key: "share", Value: int32(1)}},
		}},
	},
	{
		name: ColDocuments,
		indexes: []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "share", Value: int32(1)},
				{Key: "timestamp", Value: int32(1)},
				{Key: "seq", Value: int32(1)},
			},
			Options: options.Index().SetUnique(true),
		}, {
			Keys: bson.D{
				{Key: "share", Value: int32(1)},
				{Key: "path_key", Value: int32(1)},
			},
		}},
	},
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, info := range collectionInfos {
		if len(info.indexes) == 0 {
			continue
		}
		if _, err := db.Collection(info.name).Indexes().CreateMany(ctx, info.indexes); err != nil {
			return fmt.Errorf("create indexes of %s: %w", info.name, err)
		}
	}

	return nil
}
