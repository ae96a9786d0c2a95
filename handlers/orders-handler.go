package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"order-backend/internal/auth"
	"order-backend/internal/orders"
	"order-backend/pkg/ctxmanage"
	"order-backend/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId),
			slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var newOrder orders.NewOrder
	if err := c.ShouldBindJSON(&newOrder); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	if err := h.validate.Struct(newOrder); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			vErr := vErrs[0]
			slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			switch vErr.Tag() {
			case "required":
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
			case "min":
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
			default:
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
			}
			return
		}
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	order, err := h.o.CreateOrder(c.Request.Context(), claims.Subject, newOrder.ShippingAddress, newOrder.Items)
	if err != nil {
		var stockErr *orders.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			slog.Error("insufficient stock", slog.String(logkey.TraceID, traceId),
				slog.String("ProductID", stockErr.ProductID),
				slog.Int("Requested", stockErr.Requested), slog.Int("Available", stockErr.Available))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": stockErr.Error()})
		case errors.Is(err, orders.ErrProductNotFound):
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		default:
			slog.Error("error creating order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		}
		return
	}

	slog.Info("order created", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", order.ID), slog.Int64("TotalCents", order.TotalCents))
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var (
		list []orders.Order
		err  error
	)
	if claims.HasRole(auth.RoleAdmin) {
		list, err = h.o.ListAllOrders(c.Request.Context())
	} else {
		list, err = h.o.ListOrders(c.Request.Context(), claims.Subject)
	}
	if err != nil {
		slog.Error("error listing orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	order, err := h.o.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			slog.Error("order not found", slog.String(logkey.TraceID, traceId), slog.String("OrderID", orderID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		} else {
			slog.Error("error fetching order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		}
		return
	}

	if order.UserID != claims.Subject && !claims.HasRole(auth.RoleAdmin) {
		slog.Error("order access denied", slog.String(logkey.TraceID, traceId),
			slog.String("OrderID", orderID), slog.String("UserID", claims.Subject))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID := c.Param("id")

	var request struct {
		Status orders.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !request.Status.Valid() {
		slog.Error("invalid status value", slog.String(logkey.TraceID, traceId), slog.String("Status", string(request.Status)))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid status value"})
		return
	}

	if err := h.o.UpdateStatus(c.Request.Context(), orderID, request.Status); err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		} else {
			slog.Error("error updating order status", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		}
		return
	}

	slog.Info("order status updated", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", orderID), slog.String("Status", string(request.Status)))
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order_id": orderID, "status": request.Status})
}

func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID := c.Param("id")

	var request struct {
		PaymentStatus orders.PaymentStatus `json:"payment_status"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !request.PaymentStatus.Valid() {
		slog.Error("invalid payment status value", slog.String(logkey.TraceID, traceId),
			slog.String("PaymentStatus", string(request.PaymentStatus)))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid payment status value"})
		return
	}

	if err := h.o.UpdatePaymentStatus(c.Request.Context(), orderID, request.PaymentStatus); err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		} else {
			slog.Error("error updating payment status", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment status"})
		}
		return
	}

	slog.Info("payment status updated", slog.String(logkey.TraceID, traceId),
		slog.String("OrderID", orderID), slog.String("PaymentStatus", string(request.PaymentStatus)))
	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated", "order_id": orderID, "payment_status": request.PaymentStatus})
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	err := h.o.DeleteOrder(c.Request.Context(), claims.Subject, claims.HasRole(auth.RoleAdmin), orderID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, orders.ErrForbidden):
			slog.Error("order deletion denied", slog.String(logkey.TraceID, traceId),
				slog.String("OrderID", orderID), slog.String("UserID", claims.Subject))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		case errors.Is(err, orders.ErrNotCancelled):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Order must be cancelled before deletion"})
		default:
			slog.Error("error deleting order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete order"})
		}
		return
	}

	slog.Info("order deleted", slog.String(logkey.TraceID, traceId), slog.String("OrderID", orderID))
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted", "order_id": orderID})
}
