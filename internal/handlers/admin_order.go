package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/ordering"
	"ordersite/internal/repository"
)

type OrderStores struct {
	Orders repository.OrderRepository
	Users  repository.UserRepository
}

type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Email    string             `json:"email"`
	FullName string             `json:"fullName"`
	Company  string             `json:"company,omitempty"`
	Phone    string             `json:"phone,omitempty"`
}

func summarize(u models.UserProfile) *UserSummary {
	return &UserSummary{ID: u.ID, Email: u.Email, FullName: u.FullName, Company: u.Company, Phone: u.Phone}
}

// AdminOrder is an order with the customer and, if cancelled, the canceller
// resolved.
type AdminOrder struct {
	models.Order
	Customer        *UserSummary       `json:"customer,omitempty"`
	CancelledByUser *UserSummary       `json:"cancelledByUser,omitempty"`
	Lines           []models.OrderLine `json:"lines,omitempty"`
}

type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func withProfiles(ctx context.Context, users repository.UserRepository, orders []models.Order) ([]AdminOrder, error) {
	seen := make(map[primitive.ObjectID]struct{})
	ids := make([]primitive.ObjectID, 0, len(orders))
	add := func(id primitive.ObjectID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, o := range orders {
		add(o.CustomerID)
		if o.CancelledBy != nil {
			add(*o.CancelledBy)
		}
	}

	profiles, err := users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]AdminOrder, 0, len(orders))
	for _, o := range orders {
		view := AdminOrder{Order: o}
		if p, ok := profiles[o.CustomerID]; ok {
			view.Customer = summarize(p)
		}
		if o.CancelledBy != nil {
			if p, ok := profiles[*o.CancelledBy]; ok {
				view.CancelledByUser = summarize(p)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

/*
GET /admin/api/orders
- ?status= filters by status, ?cancelled=true is shorthand for status=cancelled
- ?search= matches order number, recipient and company
*/
func GetAllOrders(stores OrderStores) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := repository.OrderFilter{
			Search: strings.TrimSpace(c.Query("search")),
			Page:   pageWindow(page, limit),
		}
		if status := models.OrderStatus(strings.TrimSpace(c.Query("status"))); status != "" {
			if !status.Valid() {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter.Status = status
		}
		if strings.EqualFold(c.Query("cancelled"), "true") {
			filter.Status = models.StatusCancelled
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := stores.Orders.Count(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		list, err := stores.Orders.List(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		views, err := withProfiles(ctx, stores.Users, list)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		c.JSON(http.StatusOK, paginated(views, page, limit, total))
	}
}

// GET /admin/api/orders/:id
func GetAdminOrder(stores OrderStores) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := stores.Orders.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		views, err := withProfiles(ctx, stores.Users, []models.Order{*order})
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		lines, err := stores.Orders.Lines(ctx, order.ID)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		view := views[0]
		view.Lines = lines
		c.JSON(http.StatusOK, view)
	}
}

func adminActor(c *gin.Context, route string) (ordering.Actor, bool) {
	userID, ok := currentUser(c, route)
	if !ok {
		return ordering.Actor{}, false
	}
	return ordering.Actor{UserID: userID, Admin: true}, true
}

/*
PUT /admin/api/orders/:id/status
- any status may be set; the customer is mailed when notifications are on
*/
func UpdateOrderStatus(lifecycle OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		actor, ok := adminActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req OrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		status := models.OrderStatus(strings.TrimSpace(req.Status))
		if !status.Valid() {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		order, err := lifecycle.SetStatus(ctx, id, status, actor)
		if err != nil {
			respondLifecycleError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// POST /admin/api/orders/:id/cancel
func AdminCancelOrder(lifecycle OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/cancel"
		defer handlePanic(c, route)

		actor, ok := adminActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		order, err := lifecycle.Cancel(ctx, id, actor)
		if err != nil {
			respondLifecycleError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/*
POST /admin/api/orders/:id/restore
- cancelled orders go back to pending
*/
func RestoreOrder(lifecycle OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/restore"
		defer handlePanic(c, route)

		actor, ok := adminActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		order, err := lifecycle.Restore(ctx, id, actor)
		if err != nil {
			respondLifecycleError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/*
DELETE /admin/api/orders/:id
- removes the order and its lines
*/
func DeleteOrder(orders repository.OrderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := orders.Delete(ctx, id); err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}

		routeLog(route).WithFields(logrus.Fields{"orderId": id.Hex()}).Info("order deleted")
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}
