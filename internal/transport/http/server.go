package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stayware/bookingcore/internal/booking"
	"github.com/stayware/bookingcore/internal/clock"
	"github.com/stayware/bookingcore/internal/holds"
	"github.com/stayware/bookingcore/internal/infrastructure/config"
	"github.com/stayware/bookingcore/internal/infrastructure/observability"
	"github.com/stayware/bookingcore/internal/ledger"
	"github.com/stayware/bookingcore/internal/pricing"
)

// Server hosts the booking engine's JSON API.
type Server struct {
	router   *gin.Engine
	srv      *http.Server
	ledger   *ledger.Ledger
	pricing  *pricing.Engine
	holds    *holds.Manager
	bookings *booking.Composer
	catalog  Catalog
	clock    clock.Clock
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewServer wires the services into a router. It does not start
// listening; call Start.
func NewServer(
	cfg *config.Config,
	ldg *ledger.Ledger,
	eng *pricing.Engine,
	holdMgr *holds.Manager,
	composer *booking.Composer,
	catalog Catalog,
	clk clock.Clock,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(RequestTracing())
	router.Use(RequestTimeout(cfg.App.Timeout))

	s := &Server{
		router:   router,
		ledger:   ldg,
		pricing:  eng,
		holds:    holdMgr,
		bookings: composer,
		catalog:  catalog,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
	}
	s.routes(cfg)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg *config.Config) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if cfg.Observability.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/availability", s.handleAvailability)
		v1.GET("/quote", s.handleQuote)

		v1.POST("/holds", s.handleCreateHold)
		v1.GET("/holds/:token", s.handleGetHold)
		v1.POST("/holds/:token/extend", s.handleExtendHold)
		v1.DELETE("/holds/:token", s.handleReleaseHold)

		v1.POST("/bookings", s.handleCreateBooking)
		v1.GET("/bookings/:id", s.handleGetBooking)
		v1.GET("/bookings/:id/timeline", s.handleBookingTimeline)
		v1.POST("/bookings/:id/confirm", s.handleConfirmBooking)
		v1.POST("/bookings/:id/complete", s.handleCompleteBooking)
		v1.POST("/bookings/:id/reschedule", s.handleRescheduleBooking)
		v1.POST("/bookings/:id/cancel", s.handleCancelBooking)

		admin := v1.Group("/admin")
		{
			admin.POST("/room-types", s.handleSaveRoomType)
			admin.POST("/rate-overrides", s.handleSaveRateOverride)
			admin.POST("/coupons", s.handleSaveCoupon)
			admin.PUT("/tax-config/:hotelID", s.handleSaveTaxConfig)
			admin.POST("/policies", s.handleSavePolicy)
		}
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
