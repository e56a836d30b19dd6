// Package realtime pushes line item status changes to browsers watching an order item.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// MessageTypeOrderUpdate is the only message type sent to subscribers.
const MessageTypeOrderUpdate = "order_update"

// Broadcaster is the fan-out transport, normally Redis pub/sub.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// StatusMessage is the JSON frame delivered on an item channel.
type StatusMessage struct {
	Type   string               `json:"type"`
	FoodID uuid.UUID            `json:"food_id"`
	Status enums.LineItemStatus `json:"status"`
}

// Channel names the pub/sub channel of one line item.
func Channel(itemID uuid.UUID) string {
	return "order_" + itemID.String()
}

// Publisher announces status changes. Publishing is best effort and never fails the caller's
// transition, which has already committed.
type Publisher struct {
	bc   Broadcaster
	logg *logger.Logger
}

func NewPublisher(bc Broadcaster, logg *logger.Logger) *Publisher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Publisher{bc: bc, logg: logg}
}

// PublishStatus sends {type, food_id, status} on the item's channel.
func (p *Publisher) PublishStatus(ctx context.Context, itemID uuid.UUID, status enums.LineItemStatus) error {
	if p == nil || p.bc == nil {
		return nil
	}
	payload, err := json.Marshal(StatusMessage{Type: MessageTypeOrderUpdate, FoodID: itemID, Status: status})
	if err != nil {
		return fmt.Errorf("encode status message: %w", err)
	}
	if err := p.bc.Publish(ctx, Channel(itemID), payload); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "item_id", itemID.String()), "realtime publish failed")
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}
