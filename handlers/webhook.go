package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"order-backend/internal/orders"
	"order-backend/internal/stores/kafka"
	"order-backend/pkg/ctxmanage"
	"order-backend/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// paymentEventKind is the closed set of provider events we act on. Anything
// outside it is acknowledged and ignored, so unknown kinds fail closed.
type paymentEventKind int

const (
	eventIgnored paymentEventKind = iota
	paymentSucceeded
	paymentFailed
)

func classifyEvent(t stripe.EventType) paymentEventKind {
	switch t {
	case stripe.EventTypePaymentIntentSucceeded:
		return paymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		return paymentFailed
	default:
		return eventIgnored
	}
}

// Webhook reconciles asynchronous payment provider notifications with the
// order's payment status. The raw body is verified against the signature
// header before any parsing; nothing past that point is trusted blindly.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if h.webhookSecret == "" {
		slog.Error("webhook secret is not configured", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook not configured"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	kind := classifyEvent(event.Type)
	if kind == eventIgnored {
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not handled", "event": event.Type})
		return
	}

	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	orderID := paymentIntent.Metadata["order_id"]
	if orderID == "" {
		// Not one of ours. Acknowledge so the provider stops retrying.
		slog.Info("payment event missing order_id metadata", slog.String(logkey.TraceID, traceId),
			slog.String("PaymentIntentID", paymentIntent.ID))
		c.JSON(http.StatusOK, gin.H{"message": "Event acknowledged"})
		return
	}

	status := orders.PaymentCompleted
	if kind == paymentFailed {
		status = orders.PaymentFailed
	}

	matched, err := h.o.SettlePayment(c.Request.Context(), orderID, paymentIntent.ID, status)
	if err != nil {
		slog.Error("failed to settle payment", slog.String(logkey.TraceID, traceId),
			slog.String("OrderID", orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}
	if !matched {
		slog.Info("payment event did not match any order", slog.String(logkey.TraceID, traceId),
			slog.String("OrderID", orderID), slog.String("PaymentIntentID", paymentIntent.ID))
		c.JSON(http.StatusOK, gin.H{"message": "Event acknowledged"})
		return
	}

	slog.Info("payment reconciled", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", orderID), slog.String("PaymentStatus", string(status)))

	if kind == paymentSucceeded && h.k != nil {
		jsonData, err := json.Marshal(kafka.OrderPaidEvent{
			OrderID:         orderID,
			PaymentIntentID: paymentIntent.ID,
			TotalCents:      paymentIntent.Amount,
			PaidAt:          time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal OrderPaidEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		} else if err := h.k.ProduceMessage(kafka.TopicOrderPaid, []byte(orderID), jsonData); err != nil {
			// The order is already settled; a lost fulfilment event is logged, not fatal.
			slog.Error("failed to produce OrderPaidEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}
