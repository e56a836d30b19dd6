package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
)

// Repository writes the delivery log.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to the notifications log.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts one log row.
func (r *Repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// FindByEventID returns the log row written for an outbox event.
func (r *Repository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}
