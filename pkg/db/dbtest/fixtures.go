package dbtest

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodmart/foodmart-backend/pkg/db/models"
	"github.com/foodmart/foodmart-backend/pkg/enums"
	"github.com/foodmart/foodmart-backend/pkg/snapshot"
)

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Omit("User", "Vendor", "FoodItem", "Order", "Payment", "Hours").Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

// User inserts an account with the given role.
func User(t testing.TB, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Email:     gofakeit.Email(),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Role:      role,
	}
	mustCreate(t, conn, u)
	return u
}

// Vendor inserts an approved vendor with its own owner account.
func Vendor(t testing.TB, conn *gorm.DB) *models.Vendor {
	t.Helper()
	owner := User(t, conn, enums.UserRoleVendor)
	v := &models.Vendor{
		UserID:     owner.ID,
		VendorName: gofakeit.Company(),
		IsApproved: true,
	}
	mustCreate(t, conn, v)
	v.User = owner
	return v
}

// OpenAllWeek gives the vendor a 00:00-23:59 window on every weekday.
func OpenAllWeek(t testing.TB, conn *gorm.DB, vendorID uuid.UUID) {
	t.Helper()
	for day := 1; day <= 7; day++ {
		mustCreate(t, conn, &models.OpeningHour{VendorID: vendorID, Day: day, FromHour: "00:00", ToHour: "23:59"})
	}
}

// Food inserts a menu entry priced at price.
func Food(t testing.TB, conn *gorm.DB, vendorID uuid.UUID, price string) *models.FoodItem {
	t.Helper()
	f := &models.FoodItem{
		VendorID:    vendorID,
		FoodTitle:   gofakeit.Dinner(),
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
	}
	mustCreate(t, conn, f)
	return f
}

// Order inserts a paid order for the customer.
func Order(t testing.TB, conn *gorm.DB, customer *models.User, total string) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:        customer.ID,
		OrderNumber:   gofakeit.Numerify("ORD##########"),
		Email:         customer.Email,
		FirstName:     customer.FirstName,
		PaymentMethod: "esewa",
		Total:         decimal.RequireFromString(total),
		TotalData:     snapshot.MustOf(map[string]string{}),
		Status:        enums.OrderStatusCompleted,
		IsOrdered:     true,
	}
	mustCreate(t, conn, o)
	return o
}

// ItemSpec describes one line item to seed.
type ItemSpec struct {
	Order     *models.Order
	Food      *models.FoodItem
	Quantity  int
	Status    enums.LineItemStatus
	CreatedAt time.Time
	Processed bool
}

// Item inserts a line item. Zero fields default to quantity 1, status new and now.
func Item(t testing.TB, conn *gorm.DB, in ItemSpec) *models.OrderedFood {
	t.Helper()
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Status == "" {
		in.Status = enums.LineItemStatusNew
	}
	item := &models.OrderedFood{
		OrderID:           in.Order.ID,
		UserID:            in.Order.UserID,
		VendorID:          in.Food.VendorID,
		FoodItemID:        in.Food.ID,
		Quantity:          in.Quantity,
		Price:             in.Food.Price,
		Status:            in.Status,
		IsPayoutProcessed: in.Processed,
	}
	if !in.CreatedAt.IsZero() {
		item.CreatedAt = in.CreatedAt.UTC()
		item.UpdatedAt = in.CreatedAt.UTC()
	}
	mustCreate(t, conn, item)
	return item
}

// Cart inserts one cart line.
func Cart(t testing.TB, conn *gorm.DB, userID uuid.UUID, food *models.FoodItem, quantity int) *models.CartItem {
	t.Helper()
	c := &models.CartItem{UserID: userID, FoodItemID: food.ID, Quantity: quantity}
	mustCreate(t, conn, c)
	return c
}
