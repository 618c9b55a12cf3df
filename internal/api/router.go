package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"shopfloor-ops-backend/internal/auth"
	"shopfloor-ops-backend/internal/mw"
	"shopfloor-ops-backend/internal/policy"
)

// RouterOptions configures the middleware around the handlers.
type RouterOptions struct {
	Logger    zerolog.Logger
	Issuer    *auth.Issuer
	RateLimit rate.Limit
	Burst     int
	IPHeader  string
	CacheTTL  time.Duration
	// Ping reports database health on /health. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(opts.Logger))

	r.GET("/health", health(opts.Ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	// Machine listings are cached and flushed by any successful write that
	// can change a machine.
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	flush := mw.FlushOnWrite(cacheStore)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(opts.RateLimit, opts.Burst, opts.IPHeader))
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	private := api.Group("")
	private.Use(auth.Middleware(opts.Issuer, h.store))
	{
		private.GET("/auth/me", h.Me)
		private.PUT("/auth/profile", h.UpdateProfile)

		alerts := private.Group("/alerts", flush)
		alerts.GET("", h.ListAlerts)
		alerts.POST("", h.CreateAlert)
		alerts.GET("/:id", h.GetAlert)
		alerts.PUT("/:id", h.UpdateAlert)
		alerts.PUT("/:id/assign", auth.Require(policy.AlertAssignSelf), h.AssignAlert)
		alerts.DELETE("/:id", auth.Require(policy.AlertDelete), h.DeleteAlert)

		machines := private.Group("/machines", flush)
		machines.GET("", caching, h.ListMachines)
		machines.POST("", auth.Require(policy.MachineCreate), h.CreateMachine)
		machines.GET("/:id", h.GetMachine)
		machines.PUT("/:id", auth.Require(policy.MachineUpdate), h.UpdateMachine)
		machines.DELETE("/:id", auth.Require(policy.MachineDelete), h.DeleteMachine)
		machines.PUT("/:id/status", auth.Require(policy.MachineStatus), h.UpdateMachineStatus)
		machines.PUT("/:id/metrics", auth.Require(policy.MachineMetrics), h.UpdateMachineMetrics)

		users := private.Group("/users")
		users.GET("", auth.Require(policy.UserList), h.ListUsers)
		users.POST("", auth.Require(policy.UserCreate), h.CreateUser)
		users.GET("/:id", auth.Require(policy.UserView), h.GetUser)
		users.PUT("/:id", auth.Require(policy.UserUpdate), h.UpdateUser)
		users.DELETE("/:id", auth.Require(policy.UserDelete), h.DeleteUser)

		maint := private.Group("/maintenance", flush)
		maint.GET("", h.ListMaintenance)
		maint.POST("", auth.Require(policy.MaintenanceCreate), h.CreateMaintenance)
		maint.GET("/:id", h.GetMaintenance)
		maint.PUT("/:id", auth.Require(policy.MaintenanceUpdate), h.UpdateMaintenance)
		maint.PUT("/:id/complete", auth.Require(policy.MaintenanceComplete), h.CompleteMaintenance)
		maint.DELETE("/:id", auth.Require(policy.MaintenanceDelete), h.DeleteMaintenance)

		private.GET("/subscriptions", h.GetSubscription)
		private.PUT("/subscriptions", h.PutSubscription)
		private.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}

func health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
