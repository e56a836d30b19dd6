package payouts

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
)

const snapshotTimeLayout = "2006-01-02 15:04:05"

// FoodRecord is one settled line item in food_snapshot.
type FoodRecord struct {
	ID          uuid.UUID       `json:"id"`
	FoodTitle   string          `json:"food_title"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	OrderedAt   string          `json:"ordered_at"`
	CompletedAt string          `json:"completed_at"`
}

// OrderRecord groups a payout's items under their parent order in order_snapshot.
type OrderRecord struct {
	OrderID   uuid.UUID       `json:"order_id"`
	Customer  string          `json:"customer"`
	Total     decimal.Decimal `json:"total"`
	OrderedAt string          `json:"ordered_at"`
	Items     []FoodRecord    `json:"items"`
}

func foodRecord(item models.OrderedFood, loc *time.Location) FoodRecord {
	rec := FoodRecord{
		ID:          item.ID,
		Price:       item.Price,
		Quantity:    item.Quantity,
		Amount:      item.Amount,
		OrderedAt:   item.CreatedAt.In(loc).Format(snapshotTimeLayout),
		CompletedAt: item.UpdatedAt.In(loc).Format(snapshotTimeLayout),
	}
	if item.FoodItem != nil {
		rec.FoodTitle = item.FoodItem.FoodTitle
	}
	return rec
}

// buildSnapshots renders both documents in the vendor's civil time. Orders are sorted by id.
func buildSnapshots(items []models.OrderedFood, loc *time.Location) ([]FoodRecord, []OrderRecord) {
	foods := make([]FoodRecord, 0, len(items))
	byOrder := map[uuid.UUID]*OrderRecord{}
	for _, item := range items {
		rec := foodRecord(item, loc)
		foods = append(foods, rec)

		order, ok := byOrder[item.OrderID]
		if !ok {
			order = &OrderRecord{OrderID: item.OrderID, Items: []FoodRecord{}}
			if item.Order != nil {
				order.Customer = item.Order.Email
				order.Total = item.Order.Total
				order.OrderedAt = item.Order.CreatedAt.In(loc).Format(snapshotTimeLayout)
			}
			byOrder[item.OrderID] = order
		}
		order.Items = append(order.Items, rec)
	}

	orders := make([]OrderRecord, 0, len(byOrder))
	for _, o := range byOrder {
		orders = append(orders, *o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderID.String() < orders[j].OrderID.String()
	})
	return foods, orders
}
