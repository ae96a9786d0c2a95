package kafka

import "time"

const TopicOrderPaid = `order-backend.order-paid`

// OrderPaidEvent is emitted once a payment provider notification marks an
// order's payment as completed. Fulfilment consumers key on the order id.
type OrderPaidEvent struct {
	OrderID         string    `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	TotalCents      int64     `json:"total_cents"`
	PaidAt          time.Time `json:"paid_at"`
}
