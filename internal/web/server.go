package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/payment"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/reconcile"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/utils"
)

// Reconciler is implemented by reconcile.Coordinator.
type Reconciler interface {
	HandleNotify(ctx context.Context, f payment.CallbackFields) reconcile.NotifyResult
	HandleReturn(ctx context.Context, f payment.CallbackFields) reconcile.ReturnResult
	View(ctx context.Context, orderID string) reconcile.View
}

// CheckoutBuilder is implemented by payment.Builder.
type CheckoutBuilder interface {
	Build(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error)
}

type Server struct {
	reconciler Reconciler
	checkout   CheckoutBuilder
	gatewayIPs *utils.IPAllowList
	log        *logrus.Logger
	router     *gin.Engine
}

func NewServer(r Reconciler, b CheckoutBuilder, gatewayIPs *utils.IPAllowList, log *logrus.Logger) *Server {
	s := &Server{
		reconciler: r,
		checkout:   b,
		gatewayIPs: gatewayIPs,
		log:        log,
		router:     gin.New(),
	}
	// Client addresses come from the socket, not X-Forwarded-For.
	if err := s.router.SetTrustedProxies(nil); err != nil {
		log.WithError(err).Warn("Failed to reset trusted proxies")
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	s.router.POST("/api/checkout", s.handleCheckout)

	pay := s.router.Group("/payment")
	pay.GET("/return", s.handleReturn)
	pay.GET("/cancel", s.handleCancel)
	pay.POST("/notify", s.gatewayOnly(), s.handleNotify)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		}).Debug("HTTP request")
	}
}

// gatewayOnly rejects notify calls from outside the gateway's address ranges.
func (s *Server) gatewayOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !s.gatewayIPs.Allowed(ip) {
			s.log.WithField("client", ip).Warn("Notify from unexpected address rejected")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
