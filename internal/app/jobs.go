package app

import (
	"github.com/foodmart/foodmart-backend/internal/cron"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
)

// Registry builds the settlement jobs on their configured schedules, each wrapped in the
// retry policy.
func (s *Services) Registry() (*cron.Registry, error) {
	cfg := s.Config
	policy := cron.RetryPolicy{
		MaxAttempts: cfg.Cron.RetryMaxAttempts,
		BaseDelay:   cfg.Cron.RetryBaseDelay,
	}

	expiry, err := cron.NewExpiryJob(cron.ExpiryJobParams{
		Items:      s.Orders,
		Tx:         s.DB,
		Notifier:   s.Notifier,
		Publisher:  s.Publisher,
		Warnings:   s.Redis,
		WarningKey: s.Redis.ExpiryWarningKey,
		Policy: models.ExpiryPolicy{
			Window:      cfg.Settlement.ItemWindow,
			NearingFrom: cfg.Settlement.NearingFrom,
		},
		Bands:   cfg.Settlement.WarningBands,
		Clock:   s.Clock,
		Metrics: s.Metrics,
		Logger:  s.Logger,
	})
	if err != nil {
		return nil, err
	}
	payout, err := cron.NewPayoutJob(s.Processor, s.Logger)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     s.Logger,
		DB:         s.DB,
		Repository: s.OutboxRepo,
		Clock:      s.Clock,
	})
	if err != nil {
		return nil, err
	}

	everyExpiry, err := cron.Every(cfg.Cron.ExpiryInterval)
	if err != nil {
		return nil, err
	}
	nightly, err := cron.DailyAt(cfg.Cron.PayoutAt, s.Location)
	if err != nil {
		return nil, err
	}
	retentionAt, err := cron.DailyAt(retentionClock, s.Location)
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, entry := range []struct {
		job      cron.Job
		schedule cron.Schedule
		policy   cron.RetryPolicy
	}{
		// Expiry retries must fit inside half its interval.
		{expiry, everyExpiry, policy.Within(cfg.Cron.ExpiryInterval / 2)},
		{payout, nightly, policy},
		{retention, retentionAt, policy},
	} {
		wrapped, err := cron.WithRetry(entry.job, entry.policy, s.Logger)
		if err != nil {
			return nil, err
		}
		registry.Register(wrapped, entry.schedule)
	}
	return registry, nil
}

const retentionClock = "04:15"

// Scheduler builds the cron service over Registry with Redis-backed locks and slot claims.
func (s *Services) Scheduler(cronMetrics *metrics.CronJobMetrics) (*cron.Service, error) {
	registry, err := s.Registry()
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   s.Logger,
		Registry: registry,
		Locks:    cron.RedisLocks(s.Redis, s.Redis.LockKey, registry.LockTTL(s.Config.Cron.LockTTL)),
		Slots:    s.Redis,
		Keys:     s.Redis.LockKey,
		Metrics:  cronMetrics,
		Interval: s.Config.Cron.TickInterval,
		Clock:    s.Clock,
	})
}
