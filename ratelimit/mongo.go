package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "rate_limits"

// MongoStore shares counters between instances. Windows are aligned to the epoch
// (now truncated to the window length), one document per key and window, and a
// TTL index on expiresAt lets the server delete finished windows.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

type counterDoc struct {
	ID        string    `bson:"_id"`
	Count     int64     `bson:"count"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	coll := db.Collection(countersCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_ttl"),
	})
	if err != nil {
		return nil, fmt.Errorf("create rate limit ttl index: %w", err)
	}
	return &MongoStore{coll: coll, now: time.Now}, nil
}

func (m *MongoStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	start := m.now().UTC().Truncate(window)
	resetAt := start.Add(window)
	id := key + "|" + strconv.FormatInt(start.Unix(), 10)

	var doc counterDoc
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc":         bson.M{"count": int64(1)},
			"$setOnInsert": bson.M{"expiresAt": resetAt},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate limit counter: %w", err)
	}
	return doc.Count, resetAt, nil
}
