package payouts

import (
	"context"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// Service exposes payout read models to the admin surface.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Get loads one payout with its vendor.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error) {
	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.Classify(err, "load payout")
	}
	return payout, nil
}

// ListOutstanding returns payouts that still need a gateway transfer: pending, or cancelled
// by a failed attempt.
func (s *Service) ListOutstanding(ctx context.Context) ([]models.VendorPayout, error) {
	payouts, err := s.repo.ListByStatus(ctx, []enums.PayoutStatus{enums.PayoutStatusPending, enums.PayoutStatusCancelled})
	if err != nil {
		return nil, db.Classify(err, "list outstanding payouts")
	}
	return payouts, nil
}
