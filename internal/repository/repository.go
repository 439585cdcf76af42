// Package repository holds the MongoDB-backed stores for every collection the
// site reads or writes. Handlers and services depend on the interfaces; the
// Mongo* types are the only implementations outside tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate key")
	ErrStatusConflict = errors.New("order status does not allow this change")
)

const (
	productsCollection         = "products"
	categoriesCollection       = "categories"
	ordersCollection           = "orders"
	orderLinesCollection       = "order_lines"
	usersCollection            = "user_profiles"
	addressesCollection        = "shipping_addresses"
	announcementsCollection    = "announcements"
	settingsCollection         = "site_settings"
	notificationLogsCollection = "notification_logs"
	refreshTokensCollection    = "refresh_tokens"
	countersCollection         = "counters"
)

// Store bundles every repository over one database.
type Store struct {
	Products      *MongoProductRepository
	Categories    *MongoCategoryRepository
	Orders        *MongoOrderRepository
	Sequences     *MongoSequenceRepository
	Users         *MongoUserRepository
	Addresses     *MongoAddressRepository
	Announcements *MongoAnnouncementRepository
	Settings      *MongoSettingsRepository
	Notifications *MongoNotificationLogRepository
	RefreshTokens *MongoRefreshTokenRepository
}

func New(db *mongo.Database) *Store {
	return &Store{
		Products:      NewProductRepository(db),
		Categories:    NewCategoryRepository(db),
		Orders:        NewOrderRepository(db),
		Sequences:     NewSequenceRepository(db),
		Users:         NewUserRepository(db),
		Addresses:     NewAddressRepository(db),
		Announcements: NewAnnouncementRepository(db),
		Settings:      NewSettingsRepository(db),
		Notifications: NewNotificationLogRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
	}
}

// Page is the skip/limit window shared by list filters. Zero Limit means no
// limit.
type Page struct {
	Skip  int64
	Limit int64
}

func (p Page) apply(opts *options.FindOptions) *options.FindOptions {
	if p.Skip > 0 {
		opts.SetSkip(p.Skip)
	}
	if p.Limit > 0 {
		opts.SetLimit(p.Limit)
	}
	return opts
}

func mapNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// containsPattern builds a case-insensitive regex that matches the literal
// search text anywhere in the field.
func containsPattern(search string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(search)), Options: "i"}
}

func regexpQuote(s string) string {
	return regexp.QuoteMeta(s)
}

func excludeByID(filter bson.M, id *primitive.ObjectID) {
	if id != nil {
		filter["_id"] = bson.M{"$ne": *id}
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
