package ordering

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

var jst = time.FixedZone("JST", 9*60*60)

type memSequences struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemSequences() *memSequences {
	return &memSequences{counters: map[string]int64{}}
}

func (m *memSequences) Next(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memSequences) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.counters[key]
	return ok, nil
}

func (m *memSequences) SeedAtLeast(_ context.Context, key string, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[key] < floor {
		m.counters[key] = floor
	}
	return nil
}

type memOrders struct {
	mu         sync.Mutex
	orders     map[primitive.ObjectID]*models.Order
	lines      map[primitive.ObjectID][]models.OrderLine
	taken      map[string]bool
	createErr  error
	createCall int
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders: map[primitive.ObjectID]*models.Order{},
		lines:  map[primitive.ObjectID][]models.OrderLine{},
		taken:  map[string]bool{},
	}
}

func (m *memOrders) CreateWithLines(_ context.Context, order *models.Order, lines []models.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCall++
	if m.createErr != nil {
		return m.createErr
	}
	if m.taken[order.OrderNumber] {
		return repository.ErrDuplicate
	}
	order.ID = primitive.NewObjectID()
	order.CreatedAt = order.RequestedAt
	order.UpdatedAt = order.RequestedAt
	for i := range lines {
		lines[i].ID = primitive.NewObjectID()
		lines[i].OrderID = order.ID
	}
	m.taken[order.OrderNumber] = true
	stored := *order
	m.orders[order.ID] = &stored
	m.lines[order.ID] = append([]models.OrderLine(nil), lines...)
	return nil
}

func (m *memOrders) NumbersWithPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for number := range m.taken {
		if strings.HasPrefix(number, prefix) {
			out = append(out, number)
		}
	}
	return out, nil
}

func (m *memOrders) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) Transition(_ context.Context, id primitive.ObjectID, from []models.OrderStatus, change repository.StatusChange) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(from) > 0 {
		allowed := false
		for _, s := range from {
			if o.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return nil, repository.ErrStatusConflict
		}
	}
	o.Status = change.Status
	o.UpdatedAt = change.At
	switch {
	case change.CancelledBy != nil:
		by := *change.CancelledBy
		at := *change.CancelledAt
		o.CancelledBy = &by
		o.CancelledAt = &at
	case change.ClearCancellation:
		o.CancelledBy = nil
		o.CancelledAt = nil
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) put(o models.Order) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	m.orders[o.ID] = &o
	return o.ID
}

type memProducts map[primitive.ObjectID]models.Product

func (m memProducts) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := map[primitive.ObjectID]models.Product{}
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memAddresses map[primitive.ObjectID]models.ShippingAddress

func (m memAddresses) Get(_ context.Context, userID, id primitive.ObjectID) (*models.ShippingAddress, error) {
	a, ok := m[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

type recordingNotifier struct {
	confirmations []string
	statusUpdates []models.OrderStatus
	err           error
}

func (r *recordingNotifier) SendOrderConfirmation(_ context.Context, order *models.Order, _ []models.OrderLine) error {
	r.confirmations = append(r.confirmations, order.OrderNumber)
	return r.err
}

func (r *recordingNotifier) SendStatusUpdate(_ context.Context, order *models.Order) error {
	r.statusUpdates = append(r.statusUpdates, order.Status)
	return r.err
}

type recordingEvents struct {
	subjects []string
}

func (r *recordingEvents) Publish(subject string, _ interface{}) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

var errBoom = errors.New("boom")
