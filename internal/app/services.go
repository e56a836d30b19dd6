package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/internal/cart"
	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/internal/orders"
	"github.com/foodmart/foodmart-backend/internal/payouts"
	"github.com/foodmart/foodmart-backend/internal/realtime"
	"github.com/foodmart/foodmart-backend/internal/refunds"
	"github.com/foodmart/foodmart-backend/internal/settlement"
	"github.com/foodmart/foodmart-backend/internal/vendors"
	"github.com/foodmart/foodmart-backend/pkg/config"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/esewa"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
	"github.com/foodmart/foodmart-backend/pkg/money"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
	"github.com/foodmart/foodmart-backend/pkg/redis"
)

// Params carries the process-wide clients every settlement service hangs off.
type Params struct {
	Config     *config.Config
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Clock      localtime.Clock
	Logger     *logger.Logger
}

// Services is the wired settlement domain shared by the api and cron processes.
type Services struct {
	Config     *config.Config
	DB         *db.Client
	Redis      *redis.Client
	Location   *time.Location
	Commission decimal.Decimal
	Clock      localtime.Clock
	Logger     *logger.Logger

	Outbox     *outbox.Service
	OutboxRepo *outbox.Repository
	Notifier   *notifications.Requester
	Metrics    *metrics.SettlementMetrics
	Codec      *esewa.Codec
	Publisher  *realtime.Publisher

	Vendors    *vendors.Service
	Orders     *orders.Service
	Settlement *settlement.Service
	Payouts    *payouts.Service
	Processor  *payouts.Processor
	Refunds    *refunds.Service
}

// New wires every service from the shared clients. The eSewa codec is optional so that
// processes without a gateway secret can still run; credential endpoints then fail.
func New(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := p.Clock
	if clock == nil {
		clock = localtime.SystemClock{}
	}
	cfg := p.Config

	loc, err := localtime.Location(cfg.Settlement.Timezone)
	if err != nil {
		return nil, fmt.Errorf("settlement timezone: %w", err)
	}
	rate, err := money.ParseRate(cfg.Settlement.CommissionRate)
	if err != nil {
		return nil, fmt.Errorf("commission rate: %w", err)
	}

	conn := p.DB.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	notifier, err := notifications.NewRequester(emitter)
	if err != nil {
		return nil, err
	}
	settlementMetrics := metrics.NewSettlementMetrics(p.Registerer)

	var codec *esewa.Codec
	if cfg.ESewa.SecretKey != "" {
		if codec, err = esewa.NewCodec(cfg.ESewa); err != nil {
			return nil, err
		}
	} else {
		logg.Warn(logg.WithField(context.Background(), "component", "esewa"), "esewa secret missing, gateway credentials disabled")
	}

	cartRepo := cart.NewRepository(conn)
	vendorSvc, err := vendors.NewService(vendors.NewRepository(conn), cartRepo, clock, loc, logg)
	if err != nil {
		return nil, err
	}

	accumulator, err := refunds.NewAccumulator(refunds.AccumulatorParams{
		Outbox:   emitter,
		Location: loc,
		Metrics:  settlementMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       p.DB,
		Outbox:   emitter,
		Hooks:    []orders.TransitionHook{accumulator},
		Cart:     cartRepo,
		Vendors:  vendorSvc,
		Clock:    clock,
		Location: loc,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	payoutsRepo := payouts.NewRepository(conn)
	refundsRepo := refunds.NewRepository(conn)

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		Tx:       p.DB,
		Repo:     settlement.NewRepository(conn),
		Orders:   ordersRepo,
		Cart:     cartRepo,
		Vendors:  vendorSvc,
		Payouts:  payoutsRepo,
		Refunds:  refundsRepo,
		Outbox:   emitter,
		Notifier: notifier,
		Codec:    codec,
		Clock:    clock,
		Location: loc,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	processor, err := payouts.NewProcessor(payouts.ProcessorParams{
		Tx:             p.DB,
		Repo:           payoutsRepo,
		Vendors:        vendorSvc,
		Outbox:         emitter,
		Notifier:       notifier,
		Clock:          clock,
		Location:       loc,
		CommissionRate: rate,
		Metrics:        settlementMetrics,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		Config:     cfg,
		DB:         p.DB,
		Redis:      p.Redis,
		Location:   loc,
		Commission: rate,
		Clock:      clock,
		Logger:     logg,
		Outbox:     emitter,
		OutboxRepo: outboxRepo,
		Notifier:   notifier,
		Metrics:    settlementMetrics,
		Codec:      codec,
		Publisher:  realtime.NewPublisher(p.Redis, logg),
		Vendors:    vendorSvc,
		Orders:     ordersSvc,
		Settlement: settlementSvc,
		Payouts:    payouts.NewService(payoutsRepo),
		Processor:  processor,
		Refunds:    refunds.NewService(refundsRepo),
	}, nil
}
