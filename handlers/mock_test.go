package handlers

import (
	"context"
	"sync"

	"order-backend/internal/auth"
	"order-backend/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, userID, shippingAddress string, items []orders.NewOrderItem) (orders.Order, error) {
	args := m.Called(ctx, userID, shippingAddress, items)
	return args.Get(0).(orders.Order), args.Error(1)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(orders.Order), args.Error(1)
}

func (m *mockOrderStore) ListOrders(ctx context.Context, userID string) ([]orders.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]orders.Order), args.Error(1)
}

func (m *mockOrderStore) ListAllOrders(ctx context.Context) ([]orders.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]orders.Order), args.Error(1)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, orderID string, status orders.Status) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockOrderStore) UpdatePaymentStatus(ctx context.Context, orderID string, status orders.PaymentStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockOrderStore) SettlePayment(ctx context.Context, orderID, paymentIntentID string, status orders.PaymentStatus) (bool, error) {
	args := m.Called(ctx, orderID, paymentIntentID, status)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderStore) DeleteOrder(ctx context.Context, requesterID string, isAdmin bool, orderID string) error {
	args := m.Called(ctx, requesterID, isAdmin, orderID)
	return args.Error(0)
}

type producedMessage struct {
	topic string
	key   []byte
	value []byte
}

type recordingProducer struct {
	mu       sync.Mutex
	messages []producedMessage
}

func (p *recordingProducer) ProduceMessage(topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, producedMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *recordingProducer) produced() []producedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]producedMessage(nil), p.messages...)
}

// setupRouter wires the handler routes directly with pre-verified claims,
// standing in for the jwt middleware.
func setupRouter(h *Handler, claims auth.Claims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	inject := func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
	}

	r.POST("/orders", inject, h.CreateOrder)
	r.GET("/orders", inject, h.ListOrders)
	r.GET("/orders/:id", inject, h.GetOrder)
	r.DELETE("/orders/:id", inject, h.DeleteOrder)
	r.PATCH("/orders/:id/status", inject, h.UpdateOrderStatus)
	r.PATCH("/orders/:id/payment-status", inject, h.UpdatePaymentStatus)
	r.POST("/webhook", h.Webhook)
	return r
}

func userClaims(subject string, roles ...string) auth.Claims {
	c := auth.Claims{Roles: roles}
	c.Subject = subject
	return c
}
