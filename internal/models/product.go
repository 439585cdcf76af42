package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SKU         string              `bson:"sku" json:"sku"`
	Name        string              `bson:"name" json:"name"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Specs       string              `bson:"specs,omitempty" json:"specs,omitempty"`
	CategoryID  *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	ImageURL    string              `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	MinOrderQty int                 `bson:"moq" json:"moq"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// MOQ returns the minimum order quantity, treating unset values as 1.
func (p Product) MOQ() int {
	if p.MinOrderQty < 1 {
		return 1
	}
	return p.MinOrderQty
}

// ProductPatch carries the fields of a partial product update. Nil means
// "leave unchanged"; ClearCategory/ClearImage unset the reference.
type ProductPatch struct {
	SKU           *string
	Name          *string
	Description   *string
	Specs         *string
	CategoryID    *primitive.ObjectID
	ClearCategory bool
	ImageURL      *string
	ClearImage    bool
	MinOrderQty   *int
	IsActive      *bool
}

func (p ProductPatch) IsEmpty() bool {
	return p.SKU == nil && p.Name == nil && p.Description == nil && p.Specs == nil &&
		p.CategoryID == nil && !p.ClearCategory && p.ImageURL == nil && !p.ClearImage &&
		p.MinOrderQty == nil && p.IsActive == nil
}
