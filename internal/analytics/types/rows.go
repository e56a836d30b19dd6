package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SettlementFactRow mirrors the settlement_facts BigQuery schema. Amounts are in paisa.
type SettlementFactRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OrderID       *string            `bigquery:"order_id"`
	VendorID      *string            `bigquery:"vendor_id"`
	ItemID        *string            `bigquery:"item_id"`
	PayoutID      *string            `bigquery:"payout_id"`
	RefundID      *string            `bigquery:"refund_id"`
	PaymentID     *string            `bigquery:"payment_id"`
	UserID        *string            `bigquery:"user_id"`
	Status        *string            `bigquery:"status"`
	FromStatus    *string            `bigquery:"from_status"`
	AmountCents   *int64             `bigquery:"amount_cents"`
	GrossCents    *int64             `bigquery:"gross_cents"`
	NetCents      *int64             `bigquery:"net_cents"`
	ItemCount     *int64             `bigquery:"item_count"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
