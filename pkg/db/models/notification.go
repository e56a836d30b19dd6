package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// Notification is the delivery log of one outbound message.
type Notification struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID    uuid.UUID                  `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_notifications_event_id"`
	Template   enums.NotificationTemplate `gorm:"column:template;type:text;not null"`
	Subject    string                     `gorm:"column:subject;type:text;not null"`
	Recipients []string                   `gorm:"column:recipients;type:jsonb;serializer:json"`
	Context    json.RawMessage            `gorm:"column:context;type:jsonb"`
	Status     enums.NotificationStatus   `gorm:"column:status;type:text;not null"`
	Attempts   int                        `gorm:"column:attempts;not null;default:0"`
	LastError  *string                    `gorm:"column:last_error"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
