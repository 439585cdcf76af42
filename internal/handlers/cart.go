package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/cart"
	"ordersite/internal/repository"
)

type CartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gte=0"`
	Note      string `json:"note" binding:"max=500"`
}

type CartItemUpdateRequest struct {
	Quantity *int    `json:"quantity"`
	Note     *string `json:"note" binding:"omitempty,max=500"`
}

func cartResponse(ct *cart.Cart) gin.H {
	shortfalls := ct.Validate()
	if shortfalls == nil {
		shortfalls = []cart.Shortfall{}
	}
	return gin.H{
		"items":         ct.Items,
		"totalQuantity": ct.TotalQuantity(),
		"shortfalls":    shortfalls,
	}
}

func saveCart(c *gin.Context, route string, sessions *cart.SessionStore, ct *cart.Cart) bool {
	if err := sessions.Save(c.Writer, c.Request, ct); err != nil {
		if errors.Is(err, cart.ErrCartTooLarge) {
			respondWithError(c, http.StatusRequestEntityTooLarge, route, "cart is too large")
			return false
		}
		routeLog(route).WithError(err).Error("cart session not saved")
		respondWithError(c, http.StatusInternalServerError, route, "cart could not be saved")
		return false
	}
	return true
}

// GET /api/cart
func GetCart(sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cartResponse(sessions.Load(c.Request)))
	}
}

/*
POST /api/cart/items
- quantity 0 or missing adds the product MOQ
- adding a product already in the cart adds to its quantity
- a new product beyond cart.MaxItems lines answers 400
*/
func AddCartItem(sessions *cart.SessionStore, products repository.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/items"
		defer handlePanic(c, route)

		var req CartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.Get(ctx, productID)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		if !product.IsActive {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		ct := sessions.Load(c.Request)
		if _, err := ct.Add(*product, req.Quantity); err != nil {
			respondCartError(c, route, err)
			return
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			_ = ct.UpdateNote(productID, note)
		}
		if !saveCart(c, route, sessions, ct) {
			return
		}
		c.JSON(http.StatusOK, cartResponse(ct))
	}
}

/*
PATCH /api/cart/items/:productId
- quantity <= 0 removes the line
*/
func UpdateCartItem(sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /api/cart/items/:productId"
		defer handlePanic(c, route)

		productID, ok := objectIDParam(c, route, "productId")
		if !ok {
			return
		}

		var req CartItemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Quantity == nil && req.Note == nil {
			respondWithError(c, http.StatusBadRequest, route, "quantity or note is required")
			return
		}

		ct := sessions.Load(c.Request)
		if req.Note != nil {
			if err := ct.UpdateNote(productID, *req.Note); err != nil {
				respondCartError(c, route, err)
				return
			}
		}
		if req.Quantity != nil {
			if err := ct.UpdateQuantity(productID, *req.Quantity); err != nil {
				respondCartError(c, route, err)
				return
			}
		}
		if !saveCart(c, route, sessions, ct) {
			return
		}
		c.JSON(http.StatusOK, cartResponse(ct))
	}
}

// DELETE /api/cart/items/:productId
func RemoveCartItem(sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/items/:productId"
		defer handlePanic(c, route)

		productID, ok := objectIDParam(c, route, "productId")
		if !ok {
			return
		}

		ct := sessions.Load(c.Request)
		if err := ct.Remove(productID); err != nil {
			respondCartError(c, route, err)
			return
		}
		if !saveCart(c, route, sessions, ct) {
			return
		}
		c.JSON(http.StatusOK, cartResponse(ct))
	}
}

// DELETE /api/cart
func ClearCart(sessions *cart.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart"
		defer handlePanic(c, route)

		ct := cart.New()
		if !saveCart(c, route, sessions, ct) {
			return
		}
		c.JSON(http.StatusOK, cartResponse(ct))
	}
}

func respondCartError(c *gin.Context, route string, err error) {
	switch {
	case errors.Is(err, cart.ErrItemNotFound):
		respondWithError(c, http.StatusNotFound, route, "cart item not found")
		return
	case errors.Is(err, cart.ErrCartFull):
		respondWithError(c, http.StatusBadRequest, route, err.Error())
		return
	}
	respondWithError(c, http.StatusInternalServerError, route, err.Error())
}
