package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
)

// Repository persists payout batches and the line items they settle.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to payout operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockCandidates selects the vendor's completed, unsettled line items FOR UPDATE with
// their food and order loaded.
func (r *Repository) LockCandidates(ctx context.Context, vendorID uuid.UUID) ([]models.OrderedFood, error) {
	var items []models.OrderedFood
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("FoodItem").
		Preload("Order").
		Where("vendor_id = ? AND status = ? AND is_payout_processed = ?", vendorID, enums.LineItemStatusCompleted, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a payout row.
func (r *Repository) Create(ctx context.Context, payout *models.VendorPayout) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payout).Error
}

// MarkProcessed flags the items settled and returns how many rows changed.
func (r *Repository) MarkProcessed(ctx context.Context, itemIDs []uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderedFood{}).
		Where("id IN ? AND is_payout_processed = ?", itemIDs, false).
		Updates(map[string]any{
			"is_payout_processed": true,
			"processed_at":        at.UTC(),
		})
	return res.RowsAffected, res.Error
}

// FindByID loads one payout with its vendor and owner account.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var payout models.VendorPayout
	if err := r.db.WithContext(ctx).
		Preload("Vendor").
		Preload("Vendor.User").
		Where("id = ?", id).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// LockByID loads one payout FOR UPDATE.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	var payout models.VendorPayout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// amountColumns feed BeforeSave, which UpdateColumns skips.
var amountColumns = []string{"total_amount", "commission", "net_amount"}

// Update writes the given columns of one payout. Amount columns are rejected; change them
// through Save so net_amount is derived again.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	for _, column := range amountColumns {
		if _, ok := updates[column]; ok {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "payout %s cannot be updated in place", column)
		}
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorPayout{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

// ListByStatus returns payouts in any of statuses, newest date first.
func (r *Repository) ListByStatus(ctx context.Context, statuses []enums.PayoutStatus) ([]models.VendorPayout, error) {
	var payouts []models.VendorPayout
	if err := r.db.WithContext(ctx).
		Preload("Vendor").
		Where("status IN ?", statuses).
		Order("date DESC").
		Order("created_at ASC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
