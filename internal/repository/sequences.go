package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceRepository hands out monotonically increasing numbers per key from
// the counters collection.
type SequenceRepository interface {
	Next(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	SeedAtLeast(ctx context.Context, key string, floor int64) error
}

type MongoSequenceRepository struct {
	coll *mongo.Collection
}

func NewSequenceRepository(db *mongo.Database) *MongoSequenceRepository {
	return &MongoSequenceRepository{coll: db.Collection(countersCollection)}
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// Next atomically increments the counter, creating it at 1 on first use.
func (r *MongoSequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc counterDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{
			"$inc":         bson.M{"seq": 1},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (r *MongoSequenceRepository) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := r.coll.FindOne(ctx, bson.M{"_id": key}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SeedAtLeast raises the counter to floor if it is lower. $max keeps
// concurrent seeders from moving it backwards.
func (r *MongoSequenceRepository) SeedAtLeast(ctx context.Context, key string, floor int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$max":         bson.M{"seq": floor},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	return mapWriteError(err)
}
