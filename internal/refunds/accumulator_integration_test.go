//go:build integration

package refunds

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmart/foodmart-backend/pkg/db/dbtest"
	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
)

func TestConcurrentCancellationsKeepEveryAmount(t *testing.T) {
	e := newEnv(t, dbtest.Postgres(t))
	vendor := dbtest.Vendor(t, e.conn)
	items := make([]*models.OrderedFood, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, e.item(t, vendor, "12.50"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(items))
	for _, item := range items {
		wg.Add(1)
		go func(item *models.OrderedFood) {
			defer wg.Done()
			errs <- e.set(t, item, enums.LineItemStatusCancelled)
		}(item)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	refund := e.refund(t)
	assert.Equal(t, "100", refund.RefundAmount.String())
	assert.Equal(t, len(items), refund.RefundedItems.Len())
	assert.True(t, refund.IsFullyCancelled)
	assert.Equal(t, int64(1), e.refundCount(t))
}
