package enums

// NotificationTemplate names a mail template rendered by the delivery collaborator.
type NotificationTemplate string

const (
	TemplateOrderConfirmation NotificationTemplate = "order/order_confirmation_email.html"
	TemplateNewOrderReceived  NotificationTemplate = "order/new_order_received.html"
	TemplateOrderWarning      NotificationTemplate = "order/order_warning.html"
	TemplatePayoutReceipt     NotificationTemplate = "payouts/payout_receipt.html"
	TemplatePayoutCreated     NotificationTemplate = "payouts/payout_created.html"
	TemplateRefundCompleted   NotificationTemplate = "refunds/refund_completed.html"
)

// NotificationStatus is the delivery state recorded in the notifications log.
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)
