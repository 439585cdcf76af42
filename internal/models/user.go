package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// UserProfile is both the auth identity and the customer profile.
type UserProfile struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	FullName     string             `bson:"fullName" json:"fullName"`
	Company      string             `bson:"company,omitempty" json:"company,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	Role         string             `bson:"role" json:"role"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ProfilePatch struct {
	FullName *string
	Company  *string
	Phone    *string
	Address  *string
}

// ShippingAddress is an address book entry. At most one per user is default.
type ShippingAddress struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Company    string             `bson:"company,omitempty" json:"company,omitempty"`
	SiteName   string             `bson:"siteName,omitempty" json:"siteName,omitempty"`
	Name       string             `bson:"name" json:"name"`
	PostalCode string             `bson:"postalCode" json:"postalCode"`
	Prefecture string             `bson:"prefecture" json:"prefecture"`
	City       string             `bson:"city" json:"city"`
	Address1   string             `bson:"address1" json:"address1"`
	Phone      string             `bson:"phone" json:"phone"`
	IsDefault  bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Snapshot copies the address into the form stored on an order.
func (a ShippingAddress) Snapshot() ShippingSnapshot {
	return ShippingSnapshot{
		Company:    a.Company,
		SiteName:   a.SiteName,
		Name:       a.Name,
		Phone:      a.Phone,
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Address1:   a.Address1,
		Address:    a.Prefecture + a.City + a.Address1,
	}
}
