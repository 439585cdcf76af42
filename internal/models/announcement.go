package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnnouncementInfo        = "info"
	AnnouncementImportant   = "important"
	AnnouncementProduct     = "product"
	AnnouncementMaintenance = "maintenance"
)

func ValidAnnouncementType(t string) bool {
	switch t {
	case AnnouncementInfo, AnnouncementImportant, AnnouncementProduct, AnnouncementMaintenance:
		return true
	}
	return false
}

type Announcement struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title     string              `bson:"title" json:"title"`
	Content   string              `bson:"content" json:"content"`
	Type      string              `bson:"type" json:"type"`
	IsActive  bool                `bson:"isActive" json:"isActive"`
	Priority  int                 `bson:"priority" json:"priority"`
	CreatedBy *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type AnnouncementPatch struct {
	Title    *string
	Content  *string
	Type     *string
	IsActive *bool
	Priority *int
}
