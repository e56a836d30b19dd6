package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/internal/notifications"
	"github.com/foodmart/foodmart-backend/internal/vendors"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/dbtest"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
	"github.com/foodmart/foodmart-backend/pkg/logger"
	"github.com/foodmart/foodmart-backend/pkg/metrics"
	"github.com/foodmart/foodmart-backend/pkg/outbox"
)

var (
	kathmandu, _ = time.LoadLocation("Asia/Kathmandu")
	runAt        = time.Date(2026, 3, 16, 3, 30, 0, 0, kathmandu)
)

// selectiveNotifier fails for one recipient and records the rest.
type selectiveNotifier struct {
	mu      sync.Mutex
	failFor string
	sent    []notifications.Request
}

func (n *selectiveNotifier) Request(_ context.Context, _ *gorm.DB, req notifications.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, to := range req.To {
		if to == n.failFor {
			return errors.New("template store offline")
		}
	}
	n.sent = append(n.sent, req)
	return nil
}

type fixture struct {
	client   *db.Client
	conn     *gorm.DB
	notifier *selectiveNotifier
	customer *models.User
	order    *models.Order
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t))
}

func newFixtureOn(t *testing.T, client *db.Client) fixture {
	t.Helper()
	conn := client.DB()
	customer := dbtest.User(t, conn, enums.UserRoleCustomer)
	return fixture{
		client:   client,
		conn:     conn,
		notifier: &selectiveNotifier{},
		customer: customer,
		order:    dbtest.Order(t, conn, customer, "500"),
	}
}

func (f fixture) processor(t *testing.T, reg prometheus.Registerer) *Processor {
	t.Helper()
	vendorSvc, err := vendors.NewService(vendors.NewRepository(f.conn), nil, nil, kathmandu, nil)
	require.NoError(t, err)
	p, err := NewProcessor(ProcessorParams{
		Tx:             f.client,
		Repo:           NewRepository(f.conn),
		Vendors:        vendorSvc,
		Outbox:         outbox.NewService(outbox.NewRepository(f.conn), logger.Nop()),
		Notifier:       f.notifier,
		Clock:          localtime.FixedClock(runAt),
		Location:       kathmandu,
		CommissionRate: decimal.RequireFromString("0.15"),
		Metrics:        metrics.NewSettlementMetrics(reg),
	})
	require.NoError(t, err)
	return p
}

func (f fixture) completed(t *testing.T, food *models.FoodItem, qty int) *models.OrderedFood {
	t.Helper()
	return f.completedAt(t, food, qty, runAt.Add(-20*time.Hour))
}

func (f fixture) completedAt(t *testing.T, food *models.FoodItem, qty int, at time.Time) *models.OrderedFood {
	t.Helper()
	return dbtest.Item(t, f.conn, dbtest.ItemSpec{
		Order:     f.order,
		Food:      food,
		Quantity:  qty,
		Status:    enums.LineItemStatusCompleted,
		CreatedAt: at,
	})
}

func (f fixture) payouts(t *testing.T, vendorID uuid.UUID) []models.VendorPayout {
	t.Helper()
	var rows []models.VendorPayout
	require.NoError(t, f.conn.Where("vendor_id = ?", vendorID).Find(&rows).Error)
	return rows
}

func TestRunCreatesPayoutAndSettlesItems(t *testing.T) {
	f := newFixture(t)
	vendor := dbtest.Vendor(t, f.conn)
	momo := dbtest.Food(t, f.conn, vendor.ID, "100")
	tea := dbtest.Food(t, f.conn, vendor.ID, "25")
	first := f.completed(t, momo, 2)
	second := f.completedAt(t, tea, 4, runAt.Add(-19*time.Hour))
	pending := dbtest.Item(t, f.conn, dbtest.ItemSpec{Order: f.order, Food: momo, Status: enums.LineItemStatusPending})
	done := dbtest.Item(t, f.conn, dbtest.ItemSpec{Order: f.order, Food: momo, Status: enums.LineItemStatusCompleted, Processed: true})

	report, err := f.processor(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunReport{Date: "2026-03-15", Vendors: 1, Created: 1}, report)

	rows := f.payouts(t, vendor.ID)
	require.Len(t, rows, 1)
	payout := rows[0]
	assert.True(t, payout.TotalAmount.Equal(decimal.RequireFromString("300")), payout.TotalAmount.String())
	assert.True(t, payout.NetAmount.Equal(decimal.RequireFromString("255")), payout.NetAmount.String())
	assert.Equal(t, 6, payout.ItemCount)
	assert.Equal(t, enums.PayoutStatusPending, payout.Status)
	assert.Equal(t, "2026-03-15", payout.Date.UTC().Format("2006-01-02"))

	var foods []FoodRecord
	require.NoError(t, json.Unmarshal(payout.FoodSnapshot.Bytes(), &foods))
	require.Len(t, foods, 2)
	assert.Equal(t, first.ID, foods[0].ID)
	assert.Equal(t, momo.FoodTitle, foods[0].FoodTitle)
	assert.Equal(t, "2026-03-15 07:30:00", foods[0].OrderedAt)
	assert.Equal(t, second.ID, foods[1].ID)

	var orders []OrderRecord
	require.NoError(t, json.Unmarshal(payout.OrderSnapshot.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, f.order.ID, orders[0].OrderID)
	assert.Equal(t, f.customer.Email, orders[0].Customer)
	assert.Len(t, orders[0].Items, 2)

	var settled []models.OrderedFood
	require.NoError(t, f.conn.Order("created_at").Find(&settled).Error)
	processed := map[uuid.UUID]bool{}
	for _, item := range settled {
		processed[item.ID] = item.IsPayoutProcessed
	}
	assert.Equal(t, map[uuid.UUID]bool{first.ID: true, second.ID: true, pending.ID: false, done.ID: true}, processed)

	events, err := outbox.NewRepository(f.conn).ListByAggregate(nil, payout.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventVendorPayoutCreated, events[0].EventType)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, enums.TemplatePayoutCreated, f.notifier.sent[0].Template)
	assert.Equal(t, []string{vendor.User.Email}, f.notifier.sent[0].To)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	vendor := dbtest.Vendor(t, f.conn)
	f.completed(t, dbtest.Food(t, f.conn, vendor.ID, "40"), 1)
	p := f.processor(t, nil)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, f.payouts(t, vendor.ID), 1)
}

func TestRunSkipsVendorsWithNothingToSettle(t *testing.T) {
	f := newFixture(t)
	idle := dbtest.Vendor(t, f.conn)
	busy := dbtest.Vendor(t, f.conn)
	f.completed(t, dbtest.Food(t, f.conn, busy.ID, "10"), 3)

	reg := prometheus.NewRegistry()
	report, err := f.processor(t, reg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Vendors)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.payouts(t, idle.ID))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var outcomes map[string]float64
	for _, mf := range mfs {
		if mf.GetName() != "settlement_payouts_created_total" {
			continue
		}
		outcomes = map[string]float64{}
		for _, m := range mf.GetMetric() {
			outcomes[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	if diff := cmp.Diff(map[string]float64{"created": 1, "skipped": 1}, outcomes); diff != "" {
		t.Fatalf("payout outcomes (-want +got):\n%s", diff)
	}
}

func TestRunIsolatesVendorFailures(t *testing.T) {
	f := newFixture(t)
	broken := dbtest.Vendor(t, f.conn)
	healthy := dbtest.Vendor(t, f.conn)
	brokenItem := f.completed(t, dbtest.Food(t, f.conn, broken.ID, "10"), 1)
	f.completed(t, dbtest.Food(t, f.conn, healthy.ID, "10"), 1)
	f.notifier.failFor = broken.User.Email

	report, err := f.processor(t, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID.String())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)

	assert.Empty(t, f.payouts(t, broken.ID))
	assert.Len(t, f.payouts(t, healthy.ID), 1)

	var item models.OrderedFood
	require.NoError(t, f.conn.First(&item, "id = ?", brokenItem.ID).Error)
	assert.False(t, item.IsPayoutProcessed)
}

func TestNewProcessorValidatesWiring(t *testing.T) {
	_, err := NewProcessor(ProcessorParams{})
	assert.Error(t, err)
}

func TestListOutstanding(t *testing.T) {
	f := newFixture(t)
	vendor := dbtest.Vendor(t, f.conn)
	f.completed(t, dbtest.Food(t, f.conn, vendor.ID, "80"), 1)
	_, err := f.processor(t, nil).Run(context.Background())
	require.NoError(t, err)

	svc := NewService(NewRepository(f.conn))
	outstanding, err := svc.ListOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, outstanding, 1)

	got, err := svc.Get(context.Background(), outstanding[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got.Vendor)
	assert.Equal(t, vendor.VendorName, got.Vendor.VendorName)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.Error(t, err)
}
