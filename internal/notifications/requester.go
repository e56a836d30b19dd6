package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

// Request describes one templated outbound message.
type Request struct {
	Template enums.NotificationTemplate
	Subject  string
	To       []string
	Context  map[string]any
}

// Notifier is what domain services depend on to ask for a message.
type Notifier interface {
	Request(ctx context.Context, tx *gorm.DB, req Request) error
}

// Requester queues notification_requested events in the caller's transaction; delivery
// happens later in the notification worker.
type Requester struct {
	outbox outbox.Emitter
}

var _ Notifier = (*Requester)(nil)

// NewRequester builds a requester over the outbox.
func NewRequester(emitter outbox.Emitter) (*Requester, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Requester{outbox: emitter}, nil
}

// Request validates req and emits it. Blank recipients are dropped; a request with no
// recipient left is a validation error.
func (r *Requester) Request(ctx context.Context, tx *gorm.DB, req Request) error {
	to := lo.Uniq(lo.Filter(lo.Map(req.To, func(addr string, _ int) string {
		return strings.TrimSpace(addr)
	}), func(addr string, _ int) bool { return addr != "" }))
	if len(to) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification has no recipient")
	}
	if req.Template == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification template required")
	}
	return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Data: payloads.NotificationRequestedEvent{
			Template: req.Template,
			Subject:  req.Subject,
			To:       to,
			Context:  req.Context,
		},
	})
}
