package ordering

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/metrics"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

// Statuses from which each actor may cancel.
var (
	customerCancellable = []models.OrderStatus{
		models.StatusPending,
		models.StatusConfirmed,
		models.StatusProcessing,
	}
	adminCancellable = []models.OrderStatus{
		models.StatusPending,
		models.StatusConfirmed,
		models.StatusProcessing,
		models.StatusShipped,
	}
)

type OrderStore interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	Transition(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, change repository.StatusChange) (*models.Order, error)
}

type StatusNotifier interface {
	SendStatusUpdate(ctx context.Context, order *models.Order) error
}

type Actor struct {
	UserID primitive.ObjectID
	Admin  bool
}

type Lifecycle struct {
	orders   OrderStore
	notifier StatusNotifier
	events   EventPublisher
	now      func() time.Time
	log      *logrus.Entry
}

func NewLifecycle(orders OrderStore, notifier StatusNotifier, events EventPublisher) *Lifecycle {
	return &Lifecycle{
		orders:   orders,
		notifier: notifier,
		events:   events,
		now:      time.Now,
		log:      logrus.WithField("component", "order-lifecycle"),
	}
}

// Cancel moves the order to cancelled and records who did it and when.
// Customers may only cancel their own orders before shipping.
func (l *Lifecycle) Cancel(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Order, error) {
	current, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	from := adminCancellable
	if !actor.Admin {
		if current.CustomerID != actor.UserID {
			return nil, ErrNotOrderOwner
		}
		from = customerCancellable
	}

	at := l.now()
	updated, err := l.orders.Transition(ctx, id, from, repository.StatusChange{
		Status:      models.StatusCancelled,
		CancelledBy: &actor.UserID,
		CancelledAt: &at,
		At:          at,
	})
	if err != nil {
		return nil, l.mapTransitionError(err, ErrCannotCancel)
	}

	l.after(ctx, current.Status, updated, actor)
	return updated, nil
}

// Restore reopens a cancelled order as pending and clears the cancellation
// stamp. The status held before cancelling is not recovered.
func (l *Lifecycle) Restore(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Order, error) {
	updated, err := l.orders.Transition(ctx, id, []models.OrderStatus{models.StatusCancelled}, repository.StatusChange{
		Status:            models.StatusPending,
		ClearCancellation: true,
		At:                l.now(),
	})
	if err != nil {
		return nil, l.mapTransitionError(err, ErrNotCancelled)
	}

	l.after(ctx, models.StatusCancelled, updated, actor)
	return updated, nil
}

// SetStatus is the admin override: any status may follow any other.
// Cancelling through it stamps the actor like Cancel does, and leaving
// cancelled clears the stamp.
func (l *Lifecycle) SetStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, actor Actor) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	at := l.now()
	change := repository.StatusChange{Status: status, At: at}
	if status == models.StatusCancelled {
		if current.Status == models.StatusCancelled {
			return current, nil
		}
		change.CancelledBy = &actor.UserID
		change.CancelledAt = &at
	} else {
		change.ClearCancellation = true
	}

	updated, err := l.orders.Transition(ctx, id, nil, change)
	if err != nil {
		return nil, l.mapTransitionError(err, ErrInvalidStatus)
	}

	if current.Status != updated.Status {
		l.after(ctx, current.Status, updated, actor)
	}
	return updated, nil
}

func (l *Lifecycle) load(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := l.orders.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (l *Lifecycle) mapTransitionError(err, conflict error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repository.ErrStatusConflict):
		return conflict
	}
	return err
}

func (l *Lifecycle) after(ctx context.Context, previous models.OrderStatus, order *models.Order, actor Actor) {
	metrics.OrderStatusChanges.WithLabelValues(string(order.Status)).Inc()
	l.log.WithFields(logrus.Fields{
		"orderNumber": order.OrderNumber,
		"from":        previous,
		"to":          order.Status,
		"actorId":     actor.UserID.Hex(),
		"admin":       actor.Admin,
	}).Info("order status changed")

	if l.events != nil {
		if err := l.events.Publish("order.status_changed", OrderEvent{
			OrderID:     order.ID.Hex(),
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID.Hex(),
			Status:      string(order.Status),
			Previous:    string(previous),
			ActorID:     actor.UserID.Hex(),
			OccurredAt:  order.UpdatedAt,
		}); err != nil {
			l.log.WithError(err).Warn("order.status_changed event not published")
		}
	}

	if l.notifier != nil {
		if err := l.notifier.SendStatusUpdate(ctx, order); err != nil {
			l.log.WithError(err).WithField("orderNumber", order.OrderNumber).Warn("status update email failed")
		}
	}
}
