package orders

import "time"

// Status tracks fulfilment progress. Any value may move to any other via
// the administrative update; only set membership is enforced.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus tracks reconciliation with the payment provider.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Order represents an order entity in the database. TotalCents is fixed at
// creation from the locked product prices and never recomputed.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	ShippingAddress string        `json:"shipping_address"`
	TotalCents      int64         `json:"total_cents"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"` // empty until a provider event binds it
	OrderDate       time.Time     `json:"order_date"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Items           []OrderItem   `json:"items,omitempty"`
}

// OrderItem snapshots the product price at purchase time. Later catalog
// price changes never touch it.
type OrderItem struct {
	OrderID              string `json:"order_id"`
	ProductID            string `json:"product_id"`
	Quantity             int    `json:"quantity"`
	PriceAtPurchaseCents int64  `json:"price_at_purchase_cents"`
}

// NewOrderItem is one requested line in an order-creation call.
type NewOrderItem struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// NewOrder is the order-creation request body.
type NewOrder struct {
	ShippingAddress string         `json:"shipping_address" validate:"required"`
	Items           []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

// CanDelete applies the deletion gate: admins delete unconditionally,
// owners only once the order is cancelled.
func CanDelete(requesterID string, isAdmin bool, o Order) error {
	if isAdmin {
		return nil
	}
	if o.UserID != requesterID {
		return ErrForbidden
	}
	if o.Status != StatusCancelled {
		return ErrNotCancelled
	}
	return nil
}
