package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/reconcile"
)

func (s *Server) handleCheckout(c *gin.Context) {
	var req payment.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkout request"})
		return
	}

	co, err := s.checkout.Build(c.Request.Context(), req)
	switch {
	case errors.Is(err, payment.ErrInvalidCheckout):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, payment.ErrPropertyUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "Property is no longer available"})
		return
	case err != nil:
		s.log.WithError(err).Error("Failed to build checkout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start checkout"})
		return
	}

	c.JSON(http.StatusCreated, co)
}

// handleNotify answers the gateway quickly. Anything but 200 makes it retry,
// so only persistence failures get a 500.
func (s *Server) handleNotify(c *gin.Context) {
	var fields payment.CallbackFields
	if err := c.ShouldBind(&fields); err != nil {
		s.log.WithError(err).Warn("Failed to decode notify callback")
		c.String(http.StatusOK, "OK")
		return
	}

	res := s.reconciler.HandleNotify(c.Request.Context(), fields)
	if !res.Ack {
		c.String(http.StatusInternalServerError, "retry")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleReturn(c *gin.Context) {
	var fields payment.CallbackFields
	if err := c.ShouldBindQuery(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": reconcile.ViewInvalid})
		return
	}

	res := s.reconciler.HandleReturn(c.Request.Context(), fields)
	if res.View == reconcile.ViewInvalid {
		c.JSON(http.StatusBadRequest, gin.H{"status": res.View})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": res.OrderID, "status": res.View})
}

// handleCancel shows the stored state only; the cancel redirect is unsigned.
func (s *Server) handleCancel(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": s.reconciler.View(c.Request.Context(), orderID)})
}
