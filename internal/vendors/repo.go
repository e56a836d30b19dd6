package vendors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
)

// Repository handles vendor persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to vendor operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByIDs loads vendors with their opening hours.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vendors []models.Vendor
	if err := r.db.WithContext(ctx).
		Preload("Hours").
		Where("id IN ?", ids).
		Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

// FindByUserID loads the storefront owned by a vendor account.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// ListApproved returns approved vendors with their owner accounts, oldest first.
func (r *Repository) ListApproved(ctx context.Context) ([]models.Vendor, error) {
	var vendors []models.Vendor
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("is_approved = ?", true).
		Order("created_at ASC").
		Order("id ASC").
		Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}
