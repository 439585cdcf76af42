package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ordersite/internal/models"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
	Save(ctx context.Context, s *models.SiteSettings) error
}

type MongoSettingsRepository struct {
	coll *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{coll: db.Collection(settingsCollection)}
}

// Get returns the singleton, or the defaults when nothing has been saved.
func (r *MongoSettingsRepository) Get(ctx context.Context) (*models.SiteSettings, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var s models.SiteSettings
	err := r.coll.FindOne(ctx, bson.M{"_id": models.SiteSettingsID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		defaults := models.DefaultSiteSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the singleton document.
func (r *MongoSettingsRepository) Save(ctx context.Context, s *models.SiteSettings) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s.ID = models.SiteSettingsID
	s.UpdatedAt = time.Now()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": models.SiteSettingsID}, s, options.Replace().SetUpsert(true))
	return err
}
