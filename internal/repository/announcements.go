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

type AnnouncementRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Announcement, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Announcement, error)
	Create(ctx context.Context, a *models.Announcement) error
	Update(ctx context.Context, id primitive.ObjectID, patch models.AnnouncementPatch) (*models.Announcement, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type MongoAnnouncementRepository struct {
	coll *mongo.Collection
}

func NewAnnouncementRepository(db *mongo.Database) *MongoAnnouncementRepository {
	return &MongoAnnouncementRepository{coll: db.Collection(announcementsCollection)}
}

// List orders by priority desc, then most recent first.
func (r *MongoAnnouncementRepository) List(ctx context.Context, activeOnly bool) ([]models.Announcement, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Announcement, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoAnnouncementRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Announcement, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a models.Announcement
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (r *MongoAnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now()
	a.ID = primitive.NewObjectID()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, a)
	return err
}

func (r *MongoAnnouncementRepository) Update(ctx context.Context, id primitive.ObjectID, patch models.AnnouncementPatch) (*models.Announcement, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Type != nil {
		set["type"] = *patch.Type
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}

	var updated models.Announcement
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &updated, nil
}

func (r *MongoAnnouncementRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
