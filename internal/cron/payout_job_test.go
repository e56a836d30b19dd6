package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmart/foodmart-backend/internal/payouts"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

type stubPayoutRunner struct {
	report payouts.RunReport
	err    error
	runs   int
}

func (s *stubPayoutRunner) Run(context.Context) (payouts.RunReport, error) {
	s.runs++
	return s.report, s.err
}

func TestPayoutJobPropagatesBatchError(t *testing.T) {
	runner := &stubPayoutRunner{
		report: payouts.RunReport{Date: "2026-03-15", Vendors: 3, Created: 2, Failed: 1},
		err:    errors.New("vendor x: boom"),
	}
	job, err := NewPayoutJob(runner, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, PayoutJobName, job.Name())
	assert.EqualError(t, job.Run(context.Background()), "vendor x: boom")
	assert.Equal(t, 1, runner.runs)

	_, err = NewPayoutJob(nil, logger.Nop())
	assert.Error(t, err)
}
