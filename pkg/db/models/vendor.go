package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vendor is a restaurant storefront owned by a vendor user.
type Vendor struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID     `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_vendors_user_id"`
	User       *User         `gorm:"foreignKey:UserID"`
	VendorName string        `gorm:"column:vendor_name;type:text;not null"`
	IsApproved bool          `gorm:"column:is_approved;not null;default:false"`
	Timezone   *string       `gorm:"column:timezone;type:text"`
	Hours      []OpeningHour `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// OpeningHour is one opening window for a weekday. Day follows ISO numbering (1=Mon … 7=Sun).
type OpeningHour struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_opening_hours_vendor_day_window,priority:1"`
	Day      int       `gorm:"column:day;not null;uniqueIndex:ux_opening_hours_vendor_day_window,priority:2"`
	FromHour string    `gorm:"column:from_hour;type:text;not null;default:'';uniqueIndex:ux_opening_hours_vendor_day_window,priority:3"`
	ToHour   string    `gorm:"column:to_hour;type:text;not null;default:'';uniqueIndex:ux_opening_hours_vendor_day_window,priority:4"`
	IsClosed bool      `gorm:"column:is_closed;not null;default:false"`
}

func (h *OpeningHour) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}

// FoodItem is a menu entry sold by a vendor.
type FoodItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index:idx_food_items_vendor_id"`
	Vendor      *Vendor         `gorm:"foreignKey:VendorID"`
	FoodTitle   string          `gorm:"column:food_title;type:text;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *FoodItem) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}
