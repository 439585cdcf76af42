package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ordersite/internal/models"
)

type ProductFilter struct {
	Search     string
	CategoryID *primitive.ObjectID
	ActiveOnly bool
	ExcludeID  *primitive.ObjectID
	// SortBy is "name" (default) or "sku".
	SortBy string
	Page
}

type ProductRepository interface {
	List(ctx context.Context, f ProductFilter) ([]models.Product, error)
	Count(ctx context.Context, f ProductFilter) (int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	SKUExists(ctx context.Context, sku string, excludeID *primitive.ObjectID) (bool, error)
	DetachCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error)
	CountByCategory(ctx context.Context) (map[primitive.ObjectID]int64, error)
}

type MongoProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{coll: db.Collection(productsCollection)}
}

func productQuery(f ProductFilter) bson.M {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.CategoryID != nil {
		filter["categoryId"] = *f.CategoryID
	}
	if strings.TrimSpace(f.Search) != "" {
		pattern := containsPattern(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"sku": pattern},
			bson.M{"description": pattern},
			bson.M{"specs": pattern},
		}
	}
	excludeByID(filter, f.ExcludeID)
	return filter
}

func (r *MongoProductRepository) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sortKey := "name"
	if f.SortBy == "sku" {
		sortKey = "sku"
	}
	opts := f.Page.apply(options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}, {Key: "_id", Value: 1}}))

	cursor, err := r.coll.Find(ctx, productQuery(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *MongoProductRepository) Count(ctx context.Context, f ProductFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, productQuery(f))
}

func (r *MongoProductRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

func (r *MongoProductRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, cursor.Err()
}

func (r *MongoProductRepository) Create(ctx context.Context, p *models.Product) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, p)
	return mapWriteError(err)
}

func (r *MongoProductRepository) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	unset := bson.M{}

	if patch.SKU != nil {
		set["sku"] = *patch.SKU
	}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Specs != nil {
		set["specs"] = *patch.Specs
	}
	if patch.CategoryID != nil {
		set["categoryId"] = *patch.CategoryID
	} else if patch.ClearCategory {
		unset["categoryId"] = ""
	}
	if patch.ImageURL != nil {
		set["imageUrl"] = *patch.ImageURL
	} else if patch.ClearImage {
		unset["imageUrl"] = ""
	}
	if patch.MinOrderQty != nil {
		set["moq"] = *patch.MinOrderQty
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.Product
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, mapWriteError(mapNotFound(err))
	}
	return &updated, nil
}

// Delete removes the product and returns the deleted document so callers can
// clean up its image.
func (r *MongoProductRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deleted models.Product
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		return nil, mapNotFound(err)
	}
	return &deleted, nil
}

func (r *MongoProductRepository) SKUExists(ctx context.Context, sku string, excludeID *primitive.ObjectID) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{"sku": sku}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": *excludeID}
	}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DetachCategory unsets the category reference on every product that points
// at categoryID.
func (r *MongoProductRepository) DetachCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"categoryId": categoryID},
		bson.M{"$unset": bson.M{"categoryId": ""}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoProductRepository) CountByCategory(ctx context.Context) (map[primitive.ObjectID]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"categoryId": bson.M{"$exists": true, "$ne": nil}}}},
		{{Key: "$group", Value: bson.M{"_id": "$categoryId", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := map[primitive.ObjectID]int64{}
	for cursor.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Count int64              `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.ID] = row.Count
	}
	return counts, cursor.Err()
}
