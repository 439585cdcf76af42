package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{"products", []mongo.IndexModel{
			{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetName("sku_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "isActive", Value: 1}}, Options: options.Index().SetName("category_active")},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_index")},
		}},
		{"categories", []mongo.IndexModel{
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "displayOrder", Value: 1}}, Options: options.Index().SetName("display_order")},
		}},
		{"orders", []mongo.IndexModel{
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetName("order_number_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("customer_created")},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("status_index")},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_index")},
		}},
		{"order_lines", []mongo.IndexModel{
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetName("order_index")},
		}},
		{"user_profiles", []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		}},
		{"shipping_addresses", []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isDefault", Value: -1}}, Options: options.Index().SetName("user_default")},
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("one_default_per_user").SetUnique(true).
				SetPartialFilterExpression(bson.M{"isDefault": true})},
		}},
		{"announcements", []mongo.IndexModel{
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "priority", Value: -1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("active_priority")},
		}},
		{"notification_logs", []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_index")},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("type_status")},
		}},
		{"refresh_tokens", []mongo.IndexModel{
			{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetName("token_hash_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetName("expires_ttl").SetExpireAfterSeconds(0)},
		}},
	}
}

// EnsureIndexes creates every index the repositories rely on. Failures are
// logged per collection and the first error is returned.
func EnsureIndexes(db *mongo.Database) error {
	var firstErr error
	for _, plan := range indexPlan() {
		if err := ensureCollectionIndexes(db, plan); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ensureCollectionIndexes(db *mongo.Database, plan collectionIndexes) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"component": "database", "collection": plan.collection})

	names, err := db.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
	if err != nil {
		log.WithError(err).Warn("index creation failed")
		return err
	}
	log.WithField("indexes", names).Debug("indexes ensured")
	return nil
}
