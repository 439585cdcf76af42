package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ordersite/internal/models"
)

type OrderFilter struct {
	CustomerID  *primitive.ObjectID
	Status      models.OrderStatus
	Search      string
	CreatedFrom *time.Time
	Page
}

// StatusChange describes one status write. CancelledBy/CancelledAt are stamped
// together; ClearCancellation unsets both.
type StatusChange struct {
	Status            models.OrderStatus
	CancelledBy       *primitive.ObjectID
	CancelledAt       *time.Time
	ClearCancellation bool
	At                time.Time
}

type OrderRepository interface {
	CreateWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, error)
	Count(ctx context.Context, f OrderFilter) (int64, error)
	Lines(ctx context.Context, orderIDs ...primitive.ObjectID) ([]models.OrderLine, error)
	Transition(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, change StatusChange) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

type MongoOrderRepository struct {
	client *mongo.Client
	orders *mongo.Collection
	lines  *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		client: db.Client(),
		orders: db.Collection(ordersCollection),
		lines:  db.Collection(orderLinesCollection),
	}
}

func orderQuery(f OrderFilter) bson.M {
	filter := bson.M{}
	if f.CustomerID != nil {
		filter["customerId"] = *f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CreatedFrom != nil {
		filter["createdAt"] = bson.M{"$gte": *f.CreatedFrom}
	}
	if strings.TrimSpace(f.Search) != "" {
		pattern := containsPattern(f.Search)
		filter["$or"] = bson.A{
			bson.M{"orderNumber": pattern},
			bson.M{"shipping.name": pattern},
			bson.M{"shipping.company": pattern},
		}
	}
	return filter
}

func (r *MongoOrderRepository) inTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// CreateWithLines inserts the order and its lines in one transaction. A clash
// on the order number surfaces as ErrDuplicate.
func (r *MongoOrderRepository) CreateWithLines(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	order.ID = primitive.NewObjectID()
	order.CreatedAt = now
	order.UpdatedAt = now

	docs := make([]interface{}, 0, len(lines))
	for i := range lines {
		lines[i].ID = primitive.NewObjectID()
		lines[i].OrderID = order.ID
		lines[i].CreatedAt = now
		docs = append(docs, lines[i])
	}

	err := r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.orders.InsertOne(sessCtx, order); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		_, err := r.lines.InsertMany(sessCtx, docs)
		return err
	})
	return mapWriteError(err)
}

func (r *MongoOrderRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var o models.Order
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mapNotFound(err)
	}
	return &o, nil
}

func (r *MongoOrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := f.Page.apply(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	cursor, err := r.orders.Find(ctx, orderQuery(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *MongoOrderRepository) Count(ctx context.Context, f OrderFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return r.orders.CountDocuments(ctx, orderQuery(f))
}

func (r *MongoOrderRepository) Lines(ctx context.Context, orderIDs ...primitive.ObjectID) ([]models.OrderLine, error) {
	if len(orderIDs) == 0 {
		return []models.OrderLine{}, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := r.lines.Find(ctx,
		bson.M{"orderId": bson.M{"$in": orderIDs}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	lines := make([]models.OrderLine, 0)
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Transition applies change only while the order is in one of the from
// statuses (any status when from is empty). ErrStatusConflict means the order
// exists but its current status is not allowed.
func (r *MongoOrderRepository) Transition(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, change StatusChange) (*models.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}

	set := bson.M{"status": change.Status, "updatedAt": at}
	update := bson.M{"$set": set}
	switch {
	case change.CancelledBy != nil:
		set["cancelledBy"] = *change.CancelledBy
		cancelledAt := at
		if change.CancelledAt != nil {
			cancelledAt = *change.CancelledAt
		}
		set["cancelledAt"] = cancelledAt
	case change.ClearCancellation:
		update["$unset"] = bson.M{"cancelledBy": "", "cancelledAt": ""}
	}

	var updated models.Order
	err := r.orders.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	count, countErr := r.orders.CountDocuments(ctx, bson.M{"_id": id})
	if countErr != nil {
		return nil, countErr
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrStatusConflict
}

// Delete removes the order together with its lines.
func (r *MongoOrderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		res, err := r.orders.DeleteOne(sessCtx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		_, err = r.lines.DeleteMany(sessCtx, bson.M{"orderId": id})
		return err
	})
}

// NumbersWithPrefix returns every order number starting with prefix.
func (r *MongoOrderRepository) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{"orderNumber": primitive.Regex{Pattern: "^" + regexpQuote(prefix)}}
	cursor, err := r.orders.Find(ctx, filter, options.Find().SetProjection(bson.M{"orderNumber": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	numbers := make([]string, 0)
	for cursor.Next(ctx) {
		var row struct {
			OrderNumber string `bson:"orderNumber"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		numbers = append(numbers, row.OrderNumber)
	}
	return numbers, cursor.Err()
}
