package vendors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

type vendorRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	ListApproved(ctx context.Context) ([]models.Vendor, error)
}

// CartReader loads the cart lines checked by VendorStatus.
type CartReader interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

// Status lists the vendor names in a cart split by whether they are open.
type Status struct {
	Open    []string `json:"open_vendors"`
	Closed  []string `json:"closed_vendors"`
	AllOpen bool     `json:"all_open"`
}

// Service answers opening-hour questions.
type Service struct {
	repo  vendorRepository
	cart  CartReader
	clock localtime.Clock
	loc   *time.Location
	logg  *logger.Logger
}

// NewService wires the vendor service. loc is used for vendors without a timezone.
func NewService(repo vendorRepository, cart CartReader, clock localtime.Clock, loc *time.Location, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, cart: cart, clock: clock, loc: loc, logg: logg}, nil
}

// Location returns the vendor's civil timezone.
func (s *Service) Location(ctx context.Context, vendor models.Vendor) *time.Location {
	if vendor.Timezone == nil || *vendor.Timezone == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(*vendor.Timezone)
	if err != nil {
		s.logg.Warn(s.logg.WithVendorID(ctx, vendor.ID.String()), "unknown vendor timezone, using default")
		return s.loc
	}
	return loc
}

// IsOpen evaluates the vendor's hours at now in its own timezone.
func (s *Service) IsOpen(ctx context.Context, vendor models.Vendor, now time.Time) bool {
	return IsOpenNow(vendor.Hours, now.In(s.Location(ctx, vendor)))
}

// OpenVendorIDs returns the subset of vendorIDs open at now, in input order.
func (s *Service) OpenVendorIDs(ctx context.Context, vendorIDs []uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	vendors, err := s.repo.FindByIDs(ctx, lo.Uniq(vendorIDs))
	if err != nil {
		return nil, db.Classify(err, "load vendors")
	}
	open := make(map[uuid.UUID]bool, len(vendors))
	for _, v := range vendors {
		open[v.ID] = s.IsOpen(ctx, v, now)
	}
	return lo.Filter(lo.Uniq(vendorIDs), func(id uuid.UUID, _ int) bool { return open[id] }), nil
}

// VendorStatus reports which vendors in the customer's cart are open right now.
func (s *Service) VendorStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	if s.cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart reader not configured")
	}
	lines, err := s.cart.ListForUser(ctx, userID)
	if err != nil {
		return nil, db.Classify(err, "load cart")
	}
	ids := lo.Uniq(lo.FilterMap(lines, func(line models.CartItem, _ int) (uuid.UUID, bool) {
		if line.FoodItem == nil {
			return uuid.Nil, false
		}
		return line.FoodItem.VendorID, true
	}))
	vendors, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, db.Classify(err, "load vendors")
	}
	byID := lo.KeyBy(vendors, func(v models.Vendor) uuid.UUID { return v.ID })

	now := s.clock.Now()
	status := &Status{Open: []string{}, Closed: []string{}}
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		if s.IsOpen(ctx, v, now) {
			status.Open = append(status.Open, v.VendorName)
		} else {
			status.Closed = append(status.Closed, v.VendorName)
		}
	}
	status.AllOpen = len(status.Closed) == 0
	return status, nil
}

// ListApproved returns every vendor eligible for payouts.
func (s *Service) ListApproved(ctx context.Context) ([]models.Vendor, error) {
	vendors, err := s.repo.ListApproved(ctx)
	if err != nil {
		return nil, db.Classify(err, "list approved vendors")
	}
	return vendors, nil
}

// ForUser resolves the storefront of a vendor account.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, db.Classify(err, "load vendor")
	}
	return vendor, nil
}
