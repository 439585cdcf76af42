package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:    "受付中",
	StatusConfirmed:  "確認済み",
	StatusProcessing: "処理中",
	StatusShipped:    "発送済み",
	StatusDelivered:  "配達完了",
	StatusCancelled:  "キャンセル",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the customer-facing Japanese name of the status.
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ShippingSnapshot is copied from the address book at checkout and never
// linked back to it.
type ShippingSnapshot struct {
	Company    string `bson:"company,omitempty" json:"company,omitempty"`
	SiteName   string `bson:"siteName,omitempty" json:"siteName,omitempty"`
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone" json:"phone"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Prefecture string `bson:"prefecture" json:"prefecture"`
	City       string `bson:"city" json:"city"`
	Address1   string `bson:"address1" json:"address1"`
	Address    string `bson:"address" json:"address"`
}

type Order struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber   string              `bson:"orderNumber" json:"orderNumber"`
	CustomerID    primitive.ObjectID  `bson:"customerId" json:"customerId"`
	Status        OrderStatus         `bson:"status" json:"status"`
	Shipping      ShippingSnapshot    `bson:"shipping" json:"shipping"`
	DeliveryDate  string              `bson:"deliveryDate" json:"deliveryDate"`
	Note          string              `bson:"note,omitempty" json:"note,omitempty"`
	TotalQuantity int                 `bson:"totalQuantity" json:"totalQuantity"`
	RequestedAt   time.Time           `bson:"requestedAt" json:"requestedAt"`
	CancelledBy   *primitive.ObjectID `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt   *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type OrderLine struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID     primitive.ObjectID `bson:"orderId" json:"orderId"`
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	ProductName string             `bson:"productName" json:"productName"`
	ProductSKU  string             `bson:"productSku" json:"productSku"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	Note        string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
