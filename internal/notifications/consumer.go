package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notification-delivery"

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
)

type logRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyManager interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ConsumerParams wires the delivery worker.
type ConsumerParams struct {
	Repo         logRepository
	Subscription *pubsub.Subscriber
	Idempotency  idempotencyManager
	Mailer       Mailer
	Attempts     uint64
	BaseDelay    time.Duration
	Logger       *logger.Logger
}

// Consumer delivers notification_requested events and records each outcome.
type Consumer struct {
	repo         logRepository
	subscription *pubsub.Subscriber
	idempotency  idempotencyManager
	mailer       Mailer
	attempts     uint64
	baseDelay    time.Duration
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := params.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	return &Consumer{
		repo:         params.Repo,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		mailer:       params.Mailer,
		attempts:     attempts,
		baseDelay:    delay,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Debug(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	attempts, sendErr := c.deliver(ctx, Message{
		Template: payload.Template,
		Subject:  payload.Subject,
		To:       payload.To,
		Context:  payload.Context,
	})

	row := &models.Notification{
		EventID:    eventID,
		Template:   payload.Template,
		Subject:    payload.Subject,
		Recipients: payload.To,
		Status:     enums.NotificationStatusSent,
		Attempts:   attempts,
	}
	if payload.Context != nil {
		if raw, err := json.Marshal(payload.Context); err == nil {
			row.Context = raw
		}
	}
	if sendErr != nil {
		msg := sendErr.Error()
		row.Status = enums.NotificationStatusFailed
		row.LastError = &msg
		c.logg.Error(logCtx, "notification delivery failed", sendErr)
	}

	if err := c.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to record notification", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

// deliver calls the mailer with bounded exponential backoff and reports how many attempts
// were made.
func (c *Consumer) deliver(ctx context.Context, msg Message) (int, error) {
	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.baseDelay))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := c.mailer.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return attempts, err
}
