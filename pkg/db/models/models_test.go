package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/db/dbtest"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/localtime"
)

func TestVendorPayoutNetRecomputedOnSave(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()

	payout := models.VendorPayout{
		VendorID:    uuid.New(),
		TotalAmount: decimal.RequireFromString("200"),
		Commission:  decimal.RequireFromString("0.15"),
		NetAmount:   decimal.RequireFromString("1"),
		Status:      enums.PayoutStatusPending,
		Date:        localtime.Date{Year: 2026, Month: time.March, Day: 1}.In(time.UTC),
	}
	require.NoError(t, conn.Create(&payout).Error)
	assert.True(t, payout.NetAmount.Equal(decimal.RequireFromString("170")))

	payout.TotalAmount = decimal.RequireFromString("50")
	require.NoError(t, conn.Save(&payout).Error)

	var reloaded models.VendorPayout
	require.NoError(t, conn.First(&reloaded, "id = ?", payout.ID).Error)
	assert.True(t, reloaded.NetAmount.Equal(decimal.RequireFromString("42.5")), reloaded.NetAmount.String())
}

func TestOrderedFoodAmountFixedAtCreation(t *testing.T) {
	client := dbtest.Open(t)
	item := models.OrderedFood{
		OrderID:    uuid.New(),
		UserID:     uuid.New(),
		VendorID:   uuid.New(),
		FoodItemID: uuid.New(),
		Quantity:   3,
		Price:      decimal.RequireFromString("12.50"),
		Amount:     decimal.RequireFromString("999"),
		Status:     enums.LineItemStatusPending,
	}
	require.NoError(t, client.DB().Create(&item).Error)
	assert.True(t, item.Amount.Equal(decimal.RequireFromString("37.5")))
	assert.NotEqual(t, uuid.Nil, item.ID)
}

func TestExpiryPredicates(t *testing.T) {
	policy := models.ExpiryPolicy{Window: 4 * time.Minute, NearingFrom: 2 * time.Minute}
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	item := models.OrderedFood{CreatedAt: created}

	cases := []struct {
		elapsed time.Duration
		nearing bool
		expired bool
	}{
		{elapsed: time.Minute},
		{elapsed: 2 * time.Minute},
		{elapsed: 2*time.Minute + time.Second, nearing: true},
		{elapsed: 4*time.Minute - time.Nanosecond, nearing: true},
		{elapsed: 4 * time.Minute, expired: true},
		{elapsed: time.Hour, expired: true},
	}
	for _, tc := range cases {
		now := created.Add(tc.elapsed)
		assert.Equal(t, tc.elapsed, item.TimeSinceCreation(now))
		assert.Equal(t, tc.nearing, item.IsNearingExpiry(now, policy), "nearing at %s", tc.elapsed)
		assert.Equal(t, tc.expired, item.IsExpired(now, policy), "expired at %s", tc.elapsed)
	}
}

func TestOpeningHourDuplicateIsUniqueViolation(t *testing.T) {
	client := dbtest.Open(t)
	vendorID := uuid.New()
	hour := func() *models.OpeningHour {
		return &models.OpeningHour{VendorID: vendorID, Day: 1, FromHour: "09:00", ToHour: "17:00"}
	}
	require.NoError(t, client.DB().Create(hour()).Error)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(hour()).Error
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "opening_hours"))
}
