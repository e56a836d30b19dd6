package cron

import (
	"context"
	"errors"

	"github.com/foodmart/foodmart-backend/internal/payouts"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// PayoutJobName is the registry name of the daily payout batch.
const PayoutJobName = "vendor-payouts"

// PayoutRunner is the payout batch processor.
type PayoutRunner interface {
	Run(ctx context.Context) (payouts.RunReport, error)
}

// PayoutJob runs the payout batch for the previous civil day.
type PayoutJob struct {
	runner PayoutRunner
	logg   *logger.Logger
}

// NewPayoutJob wraps runner as a cron job.
func NewPayoutJob(runner PayoutRunner, logg *logger.Logger) (*PayoutJob, error) {
	if runner == nil {
		return nil, errors.New("payout processor required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PayoutJob{runner: runner, logg: logg}, nil
}

func (j *PayoutJob) Name() string { return PayoutJobName }

func (j *PayoutJob) Run(ctx context.Context) error {
	report, err := j.runner.Run(ctx)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"date":    report.Date,
		"vendors": report.Vendors,
		"created": report.Created,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}), "payout batch finished")
	return err
}
