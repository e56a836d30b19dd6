package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 10 * time.Minute
)

// RetryPolicy bounds how a failed run is re-entered.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultRetryBaseDelay
	}
	return p
}

// Span is the total backoff slept between the first and the last attempt.
func (p RetryPolicy) Span() time.Duration {
	p = p.normalized()
	return p.BaseDelay * time.Duration((uint64(1)<<(p.MaxAttempts-1))-1)
}

// Within shrinks the base delay until Span fits budget, keeping the attempt count.
func (p RetryPolicy) Within(budget time.Duration) RetryPolicy {
	p = p.normalized()
	steps := time.Duration((uint64(1) << (p.MaxAttempts - 1)) - 1)
	if steps == 0 || p.BaseDelay*steps <= budget {
		return p
	}
	p.BaseDelay = budget / steps
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	return p
}

// RetryingJob re-runs the whole wrapped job with exponential backoff. Errors whose code is
// not retryable stop the loop at once.
type RetryingJob struct {
	job      Job
	attempts uint64
	base     time.Duration
	span     time.Duration
	logg     *logger.Logger
}

// WithRetry wraps job in a RetryingJob.
func WithRetry(job Job, policy RetryPolicy, logg *logger.Logger) (*RetryingJob, error) {
	if job == nil {
		return nil, errors.New("job required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	policy = policy.normalized()
	return &RetryingJob{
		job:      job,
		attempts: uint64(policy.MaxAttempts),
		base:     policy.BaseDelay,
		span:     policy.Span(),
		logg:     logg,
	}, nil
}

// RetrySpan reports the longest time Run spends sleeping between attempts.
func (r *RetryingJob) RetrySpan() time.Duration { return r.span }

func (r *RetryingJob) Name() string { return r.job.Name() }

func (r *RetryingJob) Run(ctx context.Context) error {
	backoff := retry.WithMaxRetries(r.attempts-1, retry.NewExponential(r.base))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.job.Run(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !pkgerrors.IsRetryable(err) {
			return err
		}
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		}), "job attempt failed; retrying")
		return retry.RetryableError(fmt.Errorf("attempt %d: %w", attempt, err))
	})
}
