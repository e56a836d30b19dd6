package refunds

import (
	"context"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
)

// Service exposes refund read models to the admin surface.
type Service struct {
	repo *Repository
}

// NewService builds the refund read service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Get loads one refund.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CustomerRefund, error) {
	refund, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.Classify(err, "load refund")
	}
	return refund, nil
}

// ListPending returns refunds that have not been paid out yet.
func (s *Service) ListPending(ctx context.Context) ([]models.CustomerRefund, error) {
	refunds, err := s.repo.ListByStatus(ctx, []enums.RefundStatus{enums.RefundStatusPending}, false)
	if err != nil {
		return nil, db.Classify(err, "list pending refunds")
	}
	return refunds, nil
}

// ListSettleable returns pending or failed refunds whose orders are fully resolved.
func (s *Service) ListSettleable(ctx context.Context) ([]models.CustomerRefund, error) {
	refunds, err := s.repo.ListByStatus(ctx, []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusFailed}, true)
	if err != nil {
		return nil, db.Classify(err, "list settleable refunds")
	}
	return refunds, nil
}
