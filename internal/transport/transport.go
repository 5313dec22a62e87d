package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything InitRoutes mounts. Notifications is optional.
type Handlers struct {
	Reservations  *ReservationHandler
	Access        *AccessHandler
	Rooms         *RoomHandler
	Lifecycle     *LifecycleHandler
	Notifications *NotificationHandler
}

type RouterConfig struct {
	JWTSecret      string
	JWTIssuer      string
	RequestTimeout time.Duration
	Version        string
	// HealthChecks run on every /health request; any failure reports 503.
	HealthChecks map[string]func() error
}

func InitRoutes(h *Handlers, cfg RouterConfig) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	auth := middleware.Auth(cfg.JWTSecret, cfg.JWTIssuer)
	timeout := middleware.Timeout(cfg.RequestTimeout)

	// API routes
	api := router.Group("/api/v1")
	{
		// Door readers authenticate the token itself, not a user
		api.POST("/access/verify", timeout, h.Access.VerifyAccessToken)

		user := api.Group("", auth, timeout)

		reservations := user.Group("/reservations")
		{
			reservations.POST("", h.Reservations.CreateReservation)
			reservations.GET("", h.Reservations.GetUserReservations)
			reservations.GET("/:id", h.Reservations.GetReservation)
			reservations.PATCH("/:id", h.Reservations.UpdateReservation)
			reservations.POST("/:id/cancel", h.Reservations.CancelReservation)
		}

		rooms := user.Group("/rooms")
		{
			rooms.GET("", h.Rooms.ListRooms)
			rooms.GET("/:id", h.Rooms.GetRoom)
			rooms.GET("/:id/availability", h.Rooms.GetAvailability)
			rooms.GET("/:id/reservations", h.Reservations.GetRoomReservations)
		}

		access := user.Group("/access")
		{
			access.POST("/generate", h.Access.GenerateAccessToken)
			access.GET("/history", h.Access.GetAccessHistory)
			access.GET("/rooms/:id/status", h.Access.GetCurrentRoomStatus)
		}

		// Admin routes
		admin := user.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/reservations", h.Reservations.ListReservations)
			admin.POST("/reservations/:id/confirm", h.Reservations.ConfirmReservation)
			admin.POST("/rooms", h.Rooms.CreateRoom)
			admin.PUT("/rooms/:id", h.Rooms.UpdateRoom)
			admin.POST("/lifecycle/no-show", h.Lifecycle.RunNoShowCheck)
			admin.POST("/lifecycle/complete", h.Lifecycle.RunCompletionCheck)
		}

		if h.Notifications != nil {
			api.GET("/ws", auth, h.Notifications.Connect)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		checks := make(map[string]string, len(cfg.HealthChecks))
		for name, check := range cfg.HealthChecks {
			if err := check(); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":    status,
			"version":   cfg.Version,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	})

	return router
}
