package models

import "github.com/google/uuid"

// assignID fills an unset primary key before insert.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Vendor{},
		&OpeningHour{},
		&FoodItem{},
		&CartItem{},
		&Payment{},
		&Order{},
		&OrderedFood{},
		&CustomerRefund{},
		&VendorPayout{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
