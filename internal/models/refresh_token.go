package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken stores only the sha256 of the opaque token handed to clients.
// A rotated token points at its successor through ReplacedBy.
type RefreshToken struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty"`
	UserID     primitive.ObjectID  `bson:"userId"`
	TokenHash  string              `bson:"tokenHash"`
	UserAgent  string              `bson:"userAgent,omitempty"`
	ExpiresAt  time.Time           `bson:"expiresAt"`
	Revoked    bool                `bson:"revoked"`
	RevokedAt  *time.Time          `bson:"revokedAt,omitempty"`
	ReplacedBy *primitive.ObjectID `bson:"replacedBy,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt"`
}

func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
