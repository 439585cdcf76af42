package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordersite/internal/models"
	"ordersite/internal/postal"
	"ordersite/internal/repository"
)

type ProfileUpdateRequest struct {
	FullName *string `json:"fullName"`
	Company  *string `json:"company"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

func (r ProfileUpdateRequest) patch() models.ProfilePatch {
	return models.ProfilePatch{
		FullName: trimmedPtr(r.FullName),
		Company:  trimmedPtr(r.Company),
		Phone:    trimmedPtr(r.Phone),
		Address:  trimmedPtr(r.Address),
	}
}

type AddressRequest struct {
	Company    string `json:"company"`
	SiteName   string `json:"siteName"`
	Name       string `json:"name" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Prefecture string `json:"prefecture" binding:"required"`
	City       string `json:"city" binding:"required"`
	Address1   string `json:"address1" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	IsDefault  bool   `json:"isDefault"`
}

func (r AddressRequest) toModel() (models.ShippingAddress, string) {
	a := models.ShippingAddress{
		Company:    strings.TrimSpace(r.Company),
		SiteName:   strings.TrimSpace(r.SiteName),
		Name:       strings.TrimSpace(r.Name),
		PostalCode: postal.Normalize(r.PostalCode),
		Prefecture: strings.TrimSpace(r.Prefecture),
		City:       strings.TrimSpace(r.City),
		Address1:   strings.TrimSpace(r.Address1),
		Phone:      strings.TrimSpace(r.Phone),
		IsDefault:  r.IsDefault,
	}
	switch {
	case len(a.PostalCode) != 7:
		return a, "postalCode must be 7 digits"
	case a.Name == "" || a.Prefecture == "" || a.City == "" || a.Address1 == "" || a.Phone == "":
		return a, "name, prefecture, city, address1 and phone are required"
	}
	return a, ""
}

// GET /api/account/profile
func GetProfile(users repository.UserRepository) gin.HandlerFunc {
	return Me(users)
}

/*
PUT /api/account/profile
- only the profile fields; email and role are not editable here
*/
func UpdateProfile(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/account/profile"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req ProfileUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		patch := req.patch()
		if patch.FullName != nil && *patch.FullName == "" {
			respondWithError(c, http.StatusBadRequest, route, "fullName cannot be empty")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := users.UpdateProfile(ctx, userID, patch)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// GET /api/account/addresses
func GetUserAddresses(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/account/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := addresses.List(ctx, userID)
		if err != nil {
			respondStoreError(c, route, err, "address not found")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

/*
POST /api/account/addresses
- the first address becomes the default automatically
*/
func CreateUserAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/account/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req AddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		address, problem := req.toModel()
		if problem != "" {
			respondWithError(c, http.StatusBadRequest, route, problem)
			return
		}
		address.UserID = userID

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := addresses.Create(ctx, &address); err != nil {
			respondStoreError(c, route, err, "address not found")
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

// PUT /api/account/addresses/:id
func UpdateUserAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/account/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req AddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		address, problem := req.toModel()
		if problem != "" {
			respondWithError(c, http.StatusBadRequest, route, problem)
			return
		}
		address.ID = id
		address.UserID = userID

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := addresses.Update(ctx, &address)
		if err != nil {
			respondStoreError(c, route, err, "address not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DELETE /api/account/addresses/:id
func DeleteUserAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/account/addresses/:id"
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

		if err := addresses.Delete(ctx, userID, id); err != nil {
			respondStoreError(c, route, err, "address not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}

/*
POST /api/account/addresses/:id/default
- the previous default is cleared
*/
func SetDefaultUserAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/account/addresses/:id/default"
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

		updated, err := addresses.SetDefault(ctx, userID, id)
		if err != nil {
			respondStoreError(c, route, err, "address not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
