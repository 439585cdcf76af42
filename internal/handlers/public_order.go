package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/cart"
	"ordersite/internal/models"
	"ordersite/internal/ordering"
	"ordersite/internal/repository"
)

type CheckoutService interface {
	Review(ctx context.Context, req ordering.Request) (*ordering.Draft, error)
	Submit(ctx context.Context, req ordering.Request) (*ordering.Result, error)
}

type OrderLifecycle interface {
	Cancel(ctx context.Context, id primitive.ObjectID, actor ordering.Actor) (*models.Order, error)
	Restore(ctx context.Context, id primitive.ObjectID, actor ordering.Actor) (*models.Order, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, actor ordering.Actor) (*models.Order, error)
}

/*
CheckoutRequest
- addressId picks an address book entry; otherwise shipping is used as typed
- the lines always come from the cart session
*/
type CheckoutRequest struct {
	AddressID    string                   `json:"addressId"`
	Shipping     *models.ShippingSnapshot `json:"shipping"`
	DeliveryDate string                   `json:"deliveryDate"`
	Note         string                   `json:"note"`
}

type OrderWithLines struct {
	*models.Order
	Lines []models.OrderLine `json:"lines"`
}

func buildOrderRequest(c *gin.Context, route string, customerID primitive.ObjectID, ct *cart.Cart) (ordering.Request, bool) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return ordering.Request{}, false
	}

	out := ordering.Request{
		CustomerID:   customerID,
		Shipping:     req.Shipping,
		DeliveryDate: req.DeliveryDate,
		Note:         req.Note,
	}
	if raw := strings.TrimSpace(req.AddressID); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid addressId")
			return ordering.Request{}, false
		}
		out.AddressID = &id
	}
	for _, item := range ct.Items {
		out.Lines = append(out.Lines, ordering.LineRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Note:      item.Note,
		})
	}
	return out, true
}

func respondCheckoutError(c *gin.Context, route string, err error) {
	var verr *ordering.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "ご注文内容に誤りがあります",
			"details": verr,
		})
	case errors.Is(err, ordering.ErrEmptyCart):
		respondWithError(c, http.StatusBadRequest, route, "カートが空です")
	case errors.Is(err, ordering.ErrAddressNotFound):
		respondWithError(c, http.StatusBadRequest, route, "配送先が見つかりません")
	case errors.Is(err, ordering.ErrNumberingExhausted):
		routeLog(route).WithError(err).Error("order numbering exhausted")
		respondWithError(c, http.StatusServiceUnavailable, route, "注文番号を採番できませんでした。もう一度お試しください")
	default:
		routeLog(route).WithError(err).Error("checkout failed")
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

/*
POST /api/checkout/review
- validates the cart against the catalog without storing anything
*/
func ReviewCheckout(service CheckoutService, sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/checkout/review"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		req, ok := buildOrderRequest(c, route, userID, sessions.Load(c.Request))
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		draft, err := service.Review(ctx, req)
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	}
}

/*
POST /api/checkout
- numbers and stores the order with its lines in one transaction
- the cart is emptied only after the order is stored
- a failed confirmation email comes back as emailWarning, the order stands
*/
func SubmitCheckout(service CheckoutService, sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/checkout"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		req, ok := buildOrderRequest(c, route, userID, sessions.Load(c.Request))
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		result, err := service.Submit(ctx, req)
		if err != nil {
			respondCheckoutError(c, route, err)
			return
		}

		if err := sessions.Clear(c.Writer, c.Request); err != nil {
			routeLog(route).WithError(err).Warn("cart not cleared after checkout")
		}
		c.JSON(http.StatusCreated, result)
	}
}

// GET /api/account/orders
func GetMyOrders(orders repository.OrderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/account/orders"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := repository.OrderFilter{CustomerID: &userID, Page: pageWindow(page, limit)}
		if status := models.OrderStatus(strings.TrimSpace(c.Query("status"))); status != "" {
			if !status.Valid() {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter.Status = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := orders.Count(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		list, err := orders.List(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		c.JSON(http.StatusOK, paginated(list, page, limit, total))
	}
}

/*
GET /api/account/orders/:id
- other customers' orders answer 404
*/
func GetMyOrder(orders repository.OrderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/account/orders/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := orders.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		if order.CustomerID != userID {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		lines, err := orders.Lines(ctx, order.ID)
		if err != nil {
			respondStoreError(c, route, err, "order not found")
			return
		}
		c.JSON(http.StatusOK, OrderWithLines{Order: order, Lines: lines})
	}
}

/*
POST /api/account/orders/:id/cancel
- own orders only, before shipping
*/
func CancelMyOrder(lifecycle OrderLifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/account/orders/:id/cancel"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := lifecycle.Cancel(ctx, id, ordering.Actor{UserID: userID})
		if err != nil {
			respondLifecycleError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func respondLifecycleError(c *gin.Context, route string, err error) {
	switch {
	case errors.Is(err, ordering.ErrOrderNotFound), errors.Is(err, ordering.ErrNotOrderOwner):
		respondWithError(c, http.StatusNotFound, route, "order not found")
	case errors.Is(err, ordering.ErrCannotCancel):
		respondWithError(c, http.StatusConflict, route, "この注文はキャンセルできません")
	case errors.Is(err, ordering.ErrNotCancelled):
		respondWithError(c, http.StatusConflict, route, "キャンセルされた注文のみ復元できます")
	case errors.Is(err, ordering.ErrInvalidStatus):
		respondWithError(c, http.StatusBadRequest, route, "invalid status")
	default:
		routeLog(route).WithError(err).Error("order transition failed")
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}
