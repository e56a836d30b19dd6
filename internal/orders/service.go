package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartReader loads the cart lines an order is placed from.
type CartReader interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

// OpenVendors resolves which of the given vendors are open at now.
type OpenVendors interface {
	OpenVendorIDs(ctx context.Context, vendorIDs []uuid.UUID, now time.Time) ([]uuid.UUID, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Hooks    []TransitionHook
	Cart     CartReader
	Vendors  OpenVendors
	Clock    localtime.Clock
	Location *time.Location
	Logger   *logger.Logger
}

// Service owns the line item state machine and the order read models.
type Service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	hooks   []TransitionHook
	cart    CartReader
	vendors OpenVendors
	clock   localtime.Clock
	loc     *time.Location
	logg    *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		hooks:   params.Hooks,
		cart:    params.Cart,
		vendors: params.Vendors,
		clock:   clock,
		loc:     loc,
		logg:    logg,
	}, nil
}

// SetStatus moves one line item to a new status. The row lock, the status write, every
// hook and the outbox event share one transaction. Reapplying the current status is a
// no-op that runs no hooks.
func (s *Service) SetStatus(ctx context.Context, input SetStatusInput) (TransitionResult, error) {
	if input.ItemID == uuid.Nil {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	target, err := enums.ParseLineItemStatus(input.Status)
	if err != nil {
		return TransitionResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	ctx = s.logg.WithField(ctx, "item_id", input.ItemID.String())

	var result TransitionResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.LockItem(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
			}
			return db.Classify(err, "lock line item")
		}
		if err := authorize(input.Actor, item); err != nil {
			return err
		}
		if !roleMayRequest(input.Actor.Role, target) {
			return pkgerrors.Newf(pkgerrors.CodeForbidden, "%s may not set status %s", input.Actor.Role, target)
		}

		result = TransitionResult{Item: *item, From: item.Status, To: target}
		if item.Status == target {
			return nil
		}
		if err := CanTransition(item.Status, target); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := repo.UpdateItemStatus(ctx, item.ID, target, now); err != nil {
			return db.Classify(err, "update line item status")
		}
		item.Status = target
		item.UpdatedAt = now

		event := TransitionEvent{
			Item:  *item,
			From:  result.From,
			To:    target,
			Actor: input.Actor,
			At:    now,
		}
		for _, hook := range s.hooks {
			if err := hook.OnTransition(ctx, tx, event); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLineItemStatusChanged,
			AggregateType: enums.AggregateOrderedFood,
			AggregateID:   item.ID,
			Actor:         input.Actor.ref(),
			OccurredAt:    now,
			Data: payloads.LineItemStatusChangedEvent{
				ItemID:    item.ID,
				OrderID:   item.OrderID,
				VendorID:  item.VendorID,
				From:      result.From,
				To:        target,
				Amount:    item.Amount,
				ActorRole: input.Actor.Role.String(),
				ChangedAt: now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
		}

		result.Item = *item
		result.Changed = true
		return nil
	})
	if err != nil {
		s.compensate(ctx, err)
		return TransitionResult{}, err
	}

	if result.Changed {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"from": result.From,
			"to":   result.To,
		}), "line item status changed")
	}
	return result, nil
}

// compensate runs the follow-up carried by a hook error in a fresh transaction; the
// original error is what the caller sees.
func (s *Service) compensate(ctx context.Context, err error) {
	var comp Compensator
	if !errors.As(err, &comp) {
		return
	}
	if cerr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return comp.Compensate(ctx, tx)
	}); cerr != nil {
		s.logg.Error(ctx, "transition compensation failed", cerr)
	}
}

func authorize(actor Actor, item *models.OrderedFood) error {
	switch actor.Role {
	case enums.UserRoleCustomer:
		if actor.UserID != item.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "line item does not belong to customer")
		}
	case enums.UserRoleVendor:
		if actor.VendorID == nil || *actor.VendorID != item.VendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "line item does not belong to vendor")
		}
	}
	return nil
}

// Item returns one line item.
func (s *Service) Item(ctx context.Context, itemID uuid.UUID) (*models.OrderedFood, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, db.Classify(err, "load line item")
	}
	return item, nil
}

// ListActive returns the line items that are neither completed nor cancelled.
func (s *Service) ListActive(ctx context.Context) ([]models.OrderedFood, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, db.Classify(err, "list active line items")
	}
	return items, nil
}

// ListForOrder returns every line item of one order.
func (s *Service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderedFood, error) {
	items, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, db.Classify(err, "list order line items")
	}
	return items, nil
}
