package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// NotificationLog is written once per email attempt and never updated.
type NotificationLog struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type         string              `bson:"type" json:"type"`
	Recipient    string              `bson:"recipient" json:"recipient"`
	Subject      string              `bson:"subject" json:"subject"`
	Body         string              `bson:"body" json:"body"`
	Status       string              `bson:"status" json:"status"`
	ErrorMessage string              `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	OrderID      *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	SentAt       *time.Time          `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
}
