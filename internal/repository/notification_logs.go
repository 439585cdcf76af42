package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ordersite/internal/models"
)

type NotificationLogFilter struct {
	Type   string
	Status string
	Page
}

type NotificationLogRepository interface {
	Append(ctx context.Context, entry *models.NotificationLog) error
	List(ctx context.Context, f NotificationLogFilter) ([]models.NotificationLog, error)
	Count(ctx context.Context, f NotificationLogFilter) (int64, error)
}

type MongoNotificationLogRepository struct {
	coll *mongo.Collection
}

func NewNotificationLogRepository(db *mongo.Database) *MongoNotificationLogRepository {
	return &MongoNotificationLogRepository{coll: db.Collection(notificationLogsCollection)}
}

func notificationQuery(f NotificationLogFilter) bson.M {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *MongoNotificationLogRepository) Append(ctx context.Context, entry *models.NotificationLog) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	entry.ID = primitive.NewObjectID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *MongoNotificationLogRepository) List(ctx context.Context, f NotificationLogFilter) ([]models.NotificationLog, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := f.Page.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	cursor, err := r.coll.Find(ctx, notificationQuery(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := make([]models.NotificationLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *MongoNotificationLogRepository) Count(ctx context.Context, f NotificationLogFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, notificationQuery(f))
}
