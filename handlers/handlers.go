package handlers

import (
	"context"
	"net/http"
	"os"

	"order-backend/internal/auth"
	"order-backend/internal/orders"
	"order-backend/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// OrderStore is what the handlers need from the orders package.
type OrderStore interface {
	CreateOrder(ctx context.Context, userID, shippingAddress string, items []orders.NewOrderItem) (orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	ListOrders(ctx context.Context, userID string) ([]orders.Order, error)
	ListAllOrders(ctx context.Context) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status orders.Status) error
	UpdatePaymentStatus(ctx context.Context, orderID string, status orders.PaymentStatus) error
	SettlePayment(ctx context.Context, orderID, paymentIntentID string, status orders.PaymentStatus) (bool, error)
	DeleteOrder(ctx context.Context, requesterID string, isAdmin bool, orderID string) error
}

// EventProducer publishes fulfilment events after a payment completes.
type EventProducer interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Handler struct {
	o             OrderStore
	k             EventProducer
	webhookSecret string
	validate      *validator.Validate
}

func NewHandler(o OrderStore, k EventProducer, webhookSecret string) *Handler {
	return &Handler{
		o:             o,
		k:             k,
		webhookSecret: webhookSecret,
		validate:      validator.New(),
	}
}

func API(endpointPrefix string, keys *auth.Keys, o OrderStore, k EventProducer, webhookSecret string) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(keys)
	if err != nil {
		panic(err)
	}

	h := NewHandler(o, k, webhookSecret)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		// The provider authenticates with a signature header, not a bearer token.
		v1.POST("/webhook", h.Webhook)

		v1.Use(m.Authentication())
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.DELETE("/orders/:id", h.DeleteOrder)
		v1.PATCH("/orders/:id/status", m.Authorize(h.UpdateOrderStatus, auth.RoleAdmin))
		v1.PATCH("/orders/:id/payment-status", m.Authorize(h.UpdatePaymentStatus, auth.RoleAdmin))
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
