package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"ordersite/internal/models"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	FindActive(ctx context.Context, hash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeByHash(ctx context.Context, hash string) (bool, error)
}

type MongoRefreshTokenRepository struct {
	coll *mongo.Collection
}

func NewRefreshTokenRepository(db *mongo.Database) *MongoRefreshTokenRepository {
	return &MongoRefreshTokenRepository{coll: db.Collection(refreshTokensCollection)}
}

func (r *MongoRefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now()
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *MongoRefreshTokenRepository) FindActive(ctx context.Context, hash string) (*models.RefreshToken, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var t models.RefreshToken
	if err := r.coll.FindOne(ctx, bson.M{"tokenHash": hash, "revoked": false}).Decode(&t); err != nil {
		return nil, mapNotFound(err)
	}
	return &t, nil
}

func (r *MongoRefreshTokenRepository) Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{"revoked": true, "revokedAt": time.Now()}
	if replacedBy != nil {
		set["replacedBy"] = *replacedBy
	}
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (r *MongoRefreshTokenRepository) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"tokenHash": hash, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true, "revokedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
