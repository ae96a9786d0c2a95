package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}
	assert.False(t, Status("paid").Valid())
	assert.False(t, Status("").Valid())
}

func TestPaymentStatusValid(t *testing.T) {
	for _, p := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded} {
		assert.True(t, p.Valid(), "expected %q to be valid", p)
	}
	assert.False(t, PaymentStatus("succeeded").Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestCanDelete(t *testing.T) {
	owned := Order{ID: "ord-1", UserID: "user-1", Status: StatusCancelled}

	// Admins delete unconditionally, whatever the status.
	assert.NoError(t, CanDelete("someone-else", true, Order{UserID: "user-1", Status: StatusShipped}))

	// Owner of a cancelled order may delete it.
	assert.NoError(t, CanDelete("user-1", false, owned))

	// Owner of a non-cancelled order is blocked.
	pending := owned
	pending.Status = StatusPending
	assert.ErrorIs(t, CanDelete("user-1", false, pending), ErrNotCancelled)

	// Non-owners are rejected before the status is even considered.
	assert.ErrorIs(t, CanDelete("user-2", false, owned), ErrForbidden)
	assert.ErrorIs(t, CanDelete("user-2", false, pending), ErrForbidden)
}

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{ProductID: "prod-1", Available: 2, Requested: 3}
	assert.Equal(t, "insufficient stock for product prod-1: requested 3, available 2", err.Error())
}

func TestMergeItems(t *testing.T) {
	items := []NewOrderItem{
		{ProductID: "bb", Quantity: 2},
		{ProductID: "aa", Quantity: 1},
		{ProductID: "bb", Quantity: 3},
	}

	ids, quantities := mergeItems(items)

	// Duplicate lines collapse and ids come back in ascending lock order.
	assert.Equal(t, []string{"aa", "bb"}, ids)
	assert.Equal(t, 1, quantities["aa"])
	assert.Equal(t, 5, quantities["bb"])
}
