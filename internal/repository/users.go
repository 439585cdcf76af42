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

type UserFilter struct {
	Search      string
	Role        string
	CreatedFrom *time.Time
	Page
}

type UserRepository interface {
	Create(ctx context.Context, u *models.UserProfile) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserProfile, error)
	List(ctx context.Context, f UserFilter) ([]models.UserProfile, error)
	Count(ctx context.Context, f UserFilter) (int64, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, patch models.ProfilePatch) (*models.UserProfile, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role string) (*models.UserProfile, error)
}

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

func userQuery(f UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.CreatedFrom != nil {
		filter["createdAt"] = bson.M{"$gte": *f.CreatedFrom}
	}
	if strings.TrimSpace(f.Search) != "" {
		pattern := containsPattern(f.Search)
		filter["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"fullName": pattern},
			bson.M{"company": pattern},
		}
	}
	return filter
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.UserProfile) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, u)
	return mapWriteError(err)
}

func (r *MongoUserRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.UserProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.UserProfile
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

// GetMany loads several profiles with one query; missing ids are absent from
// the result.
func (r *MongoUserRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserProfile, error) {
	out := make(map[primitive.ObjectID]models.UserProfile, len(ids))
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
		var u models.UserProfile
		if err := cursor.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cursor.Err()
}

func (r *MongoUserRepository) List(ctx context.Context, f UserFilter) ([]models.UserProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := f.Page.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	cursor, err := r.coll.Find(ctx, userQuery(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]models.UserProfile, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) Count(ctx context.Context, f UserFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.coll.CountDocuments(ctx, userQuery(f))
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, patch models.ProfilePatch) (*models.UserProfile, error) {
	set := bson.M{"updatedAt": time.Now()}
	if patch.FullName != nil {
		set["fullName"] = *patch.FullName
	}
	if patch.Company != nil {
		set["company"] = *patch.Company
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	return r.update(ctx, id, set)
}

func (r *MongoUserRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, role string) (*models.UserProfile, error) {
	return r.update(ctx, id, bson.M{"role": role, "updatedAt": time.Now()})
}

func (r *MongoUserRepository) update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.UserProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var updated models.UserProfile
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &updated, nil
}
