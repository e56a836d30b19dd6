package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
)

// Earnings sums the vendor's completed line items over the local day, the previous seven
// civil days, the current month before today, and all time.
func (s *Service) Earnings(ctx context.Context, vendorID uuid.UUID) (*EarningsReport, error) {
	now := s.clock.Now().In(s.loc)
	today := localtime.StartOfDay(now, s.loc)
	weekStart := today.AddDate(0, 0, -7)
	monthStart := localtime.StartOfMonth(now, s.loc)

	todayTotal, err := s.repo.SumCompleted(ctx, vendorID, &today, nil)
	if err != nil {
		return nil, db.Classify(err, "sum today earnings")
	}
	weekly, err := s.repo.SumCompleted(ctx, vendorID, &weekStart, &today)
	if err != nil {
		return nil, db.Classify(err, "sum weekly earnings")
	}
	monthly := decimal.Zero
	if monthStart.Before(today) {
		monthly, err = s.repo.SumCompleted(ctx, vendorID, &monthStart, &today)
		if err != nil {
			return nil, db.Classify(err, "sum monthly earnings")
		}
	}
	total, err := s.repo.SumCompleted(ctx, vendorID, nil, nil)
	if err != nil {
		return nil, db.Classify(err, "sum total earnings")
	}
	byMonth, err := s.earningsByMonth(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	return &EarningsReport{
		Today:       todayTotal,
		Weekly:      weekly,
		Monthly:     monthly,
		Total:       total,
		ByMonth:     byMonth,
		CurrentDate: localtime.DateOf(now, s.loc).String(),
	}, nil
}

func (s *Service) earningsByMonth(ctx context.Context, vendorID uuid.UUID) ([]MonthlyEarning, error) {
	rows, err := s.repo.ListCompletedAmounts(ctx, vendorID)
	if err != nil {
		return nil, db.Classify(err, "list completed amounts")
	}
	out := []MonthlyEarning{}
	for _, row := range rows {
		month := row.CreatedAt.In(s.loc).Format("2006-01")
		if n := len(out); n > 0 && out[n-1].Month == month {
			out[n-1].Earnings = out[n-1].Earnings.Add(row.Amount)
			continue
		}
		out = append(out, MonthlyEarning{Month: month, Earnings: row.Amount})
	}
	return out, nil
}
