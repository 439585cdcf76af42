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

// AddressRepository scopes every query to the owning user.
type AddressRepository interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]models.ShippingAddress, error)
	Get(ctx context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error)
	Create(ctx context.Context, a *models.ShippingAddress) error
	Update(ctx context.Context, a *models.ShippingAddress) (*models.ShippingAddress, error)
	SetDefault(ctx context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error)
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
}

type MongoAddressRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewAddressRepository(db *mongo.Database) *MongoAddressRepository {
	return &MongoAddressRepository{client: db.Client(), coll: db.Collection(addressesCollection)}
}

const defaultSwapAttempts = 3

// retryDefaultSwap reruns fn when a concurrent default change trips the
// one-default-per-user index. The final clash surfaces as ErrDuplicate.
func retryDefaultSwap(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return mapWriteError(err)
}

// inTransaction clears the old default and writes the new one atomically.
func (r *MongoAddressRepository) inTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	return retryDefaultSwap(defaultSwapAttempts, func() error {
		session, err := r.client.StartSession()
		if err != nil {
			return err
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(sessCtx)
		})
		return err
	})
}

func (r *MongoAddressRepository) List(ctx context.Context, userID primitive.ObjectID) ([]models.ShippingAddress, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	addresses := make([]models.ShippingAddress, 0)
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *MongoAddressRepository) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var a models.ShippingAddress
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&a); err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

// Create inserts the address. The first address of a user always becomes
// the default; a new default clears the previous one in the same
// transaction.
func (r *MongoAddressRepository) Create(ctx context.Context, a *models.ShippingAddress) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	a.ID = primitive.NewObjectID()
	wantDefault := a.IsDefault

	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		count, err := r.coll.CountDocuments(sessCtx, bson.M{"userId": a.UserID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		a.IsDefault = wantDefault || count == 0

		now := time.Now()
		a.CreatedAt = now
		a.UpdatedAt = now

		if a.IsDefault {
			if err := r.clearDefault(sessCtx, a.UserID, a.ID); err != nil {
				return err
			}
		}
		_, err = r.coll.InsertOne(sessCtx, a)
		return err
	})
}

func (r *MongoAddressRepository) Update(ctx context.Context, a *models.ShippingAddress) (*models.ShippingAddress, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{
		"company":    a.Company,
		"siteName":   a.SiteName,
		"name":       a.Name,
		"postalCode": a.PostalCode,
		"prefecture": a.Prefecture,
		"city":       a.City,
		"address1":   a.Address1,
		"phone":      a.Phone,
		"updatedAt":  time.Now(),
	}
	if a.IsDefault {
		set["isDefault"] = true
	}

	var updated models.ShippingAddress
	err := r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if a.IsDefault {
			if err := r.clearDefault(sessCtx, a.UserID, a.ID); err != nil {
				return err
			}
		}
		return r.coll.FindOneAndUpdate(sessCtx,
			bson.M{"_id": a.ID, "userId": a.UserID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &updated, nil
}

func (r *MongoAddressRepository) SetDefault(ctx context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error) {
	if _, err := r.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var updated models.ShippingAddress
	err := r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.clearDefault(sessCtx, userID, id); err != nil {
			return err
		}
		return r.coll.FindOneAndUpdate(sessCtx,
			bson.M{"_id": id, "userId": userID},
			bson.M{"$set": bson.M{"isDefault": true, "updatedAt": time.Now()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &updated, nil
}

func (r *MongoAddressRepository) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAddressRepository) clearDefault(ctx context.Context, userID, keep primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "_id": bson.M{"$ne": keep}, "isDefault": true},
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": time.Now()}},
	)
	return err
}
