package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentacar/internal/infra/config"
	"rentacar/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Check(c *gin.Context)
	Available(c *gin.Context)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Cancel(c *gin.Context)
}

type CheckoutHTTP interface {
	Start(c *gin.Context)
}

type PaymentsHTTP interface {
	Webhook(c *gin.Context)
	Success(c *gin.Context)
	Cancel(c *gin.Context)
}

type MeHTTP interface {
	ListBookings(c *gin.Context)
}

type AdminHTTP interface {
	DeleteBooking(c *gin.Context)
}

type Handlers struct {
	Availability   AvailabilityHTTP
	Booking        BookingHTTP
	Checkout       CheckoutHTTP
	Payments       PaymentsHTTP
	Me             MeHTTP
	Admin          AdminHTTP
	AuthMiddleware gin.HandlerFunc
	RateLimiter    gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the engine without binding an address.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	// Provider callbacks stay outside the rate limiter and the bearer auth.
	if h.Payments != nil {
		payments := router.Group("/payments")
		payments.POST("/webhook", h.Payments.Webhook)
		payments.GET("/success", h.Payments.Success)
		payments.GET("/cancel", h.Payments.Cancel)
	}

	api := router.Group("/api/v1")
	if h.RateLimiter != nil {
		api.Use(h.RateLimiter)
	}
	if h.AuthMiddleware != nil {
		api.Use(h.AuthMiddleware)
	}
	if h.Availability != nil {
		api.GET("/cars/available", h.Availability.Available)
		api.GET("/cars/:id/availability", h.Availability.Check)
	}
	if h.Checkout != nil {
		api.POST("/checkout", h.Checkout.Start)
	}
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
	}
	if h.Me != nil {
		meGroup := api.Group("/me")
		meGroup.GET("/bookings", h.Me.ListBookings)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/admin")
		adminGroup.DELETE("/bookings/:id", h.Admin.DeleteBooking)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
