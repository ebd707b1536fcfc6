package server

import (
	"context"
	"net/http"
	"time"

	"eventsbga/internal/admin"
	"eventsbga/internal/auth"
	"eventsbga/internal/availability"
	"eventsbga/internal/config"
	"eventsbga/internal/events"
	"eventsbga/internal/identity"

	"github.com/gin-gonic/gin"
)

// Handlers groups the domain handlers mounted on the router.
type Handlers struct {
	Availability *availability.Handler
	Managers     *identity.Handler
	Events       *events.Handler
	Admin        *admin.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, verifier auth.Verifier, h Handlers, checks map[string]HealthCheck) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		corsMiddleware(cfg.CORSAllowedOrigins),
		RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	)

	router.GET("/health", Health(checks))
	router.GET("/metrics", Metrics())

	authMiddleware := auth.AuthMiddleware(verifier)
	managerOnly := auth.RequireRole(auth.RoleManager, auth.RoleAdmin)
	artistOnly := auth.RequireRole(auth.RoleArtist, auth.RoleAdmin)

	// Public reads.
	router.GET("/events", h.Events.ListUpcoming)
	router.GET("/managers/:managerRef", h.Managers.Get)
	router.GET("/venues/:managerRef/availability", h.Availability.GetAvailability)
	router.GET("/venues/:managerRef/blocked-slots", h.Availability.ListBlockedSlots)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		managers := protected.Group("/managers", managerOnly)
		{
			managers.POST("", h.Managers.Register)
			managers.GET("/me", h.Managers.Me)
			managers.PUT("/me", h.Managers.Update)
			managers.DELETE("/me", h.Managers.Delete)
			managers.POST("/me/image", h.Managers.UploadImage)
		}

		venues := protected.Group("/venues", managerOnly)
		{
			venues.GET("/me/events", h.Events.ListVenueRequests)
			venues.POST("/:managerRef/availability", h.Availability.ReplaceAvailability)
			venues.POST("/:managerRef/blocked-slots/block", h.Availability.BlockSlot)
			venues.POST("/:managerRef/blocked-slots/unblock", h.Availability.UnblockSlot)
			venues.DELETE("/:managerRef/blocked-slots/:id", h.Availability.DeleteBlockedSlot)
			venues.POST("/:managerRef/reset", h.Availability.Reset)
		}

		protected.POST("/events", artistOnly, h.Events.Create)
		protected.GET("/events/mine", artistOnly, h.Events.ListMine)
		protected.POST("/events/:id/cancel", artistOnly, h.Events.Cancel)
		protected.POST("/events/:id/approve", managerOnly, h.Events.Approve)
		protected.POST("/events/:id/reject", managerOnly, h.Events.Reject)
		protected.POST("/events/:id/attend", h.Events.Attend)
		protected.GET("/events/:id/attendees", h.Events.ListAttendees)
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		adminGroup.GET("/stats", h.Admin.GetStats)
		adminGroup.GET("/activity", h.Admin.GetActivity)
		adminGroup.POST("/reconcile", h.Admin.Reconcile)
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops; it returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
