package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"ps-rental-backend/config"
	"ps-rental-backend/internal/auth"
	"ps-rental-backend/internal/lifecycle"
	"ps-rental-backend/internal/mw"
	"ps-rental-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, ctrl *lifecycle.Controller, tokens *auth.Tokens, webpushOptions *webpush.Options, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	limit := rate.Limit(cfg.Server.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Limit(10)
	}
	burst := cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	handler := NewHandler(s, ctrl, tokens, webpushOptions, cacheStore, cfg.Units.StaleAfter)

	// The bridge path is license-authenticated and reports on a tight
	// interval, so it bypasses the per-IP limiter.
	rateLimiter := mw.RateLimiter(limit, burst, "/api/bridge/status")

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", handler.Login)

		// Customer self-service, capability is the access key.
		api.GET("/status/:key", handler.GetCustomerStatus)
		api.POST("/status/:key/finish", handler.CustomerFinish)
		api.GET("/menu", caching, handler.ListMenu)

		// Bridge daemons.
		api.POST("/bridge/status", mw.RequireLicense(s), handler.BridgeStatus)

		// Operator push alerts (teacher-style open subscription endpoints).
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Staff console.
		staff := api.Group("")
		staff.Use(mw.RequireAuth(tokens))
		{
			staff.GET("/units", handler.ListUnits)
			staff.POST("/units", handler.CreateUnit)
			staff.PATCH("/units/:id", handler.UpdateUnit)

			staff.GET("/rentals", handler.ListRentals)
			staff.POST("/rentals", handler.CreateRental)
			staff.GET("/rentals/:id", handler.GetRental)
			staff.POST("/rentals/:id/pause", handler.PauseRental)
			staff.POST("/rentals/:id/resume", handler.ResumeRental)
			staff.POST("/rentals/:id/finish", handler.FinishRental)
			staff.POST("/rentals/:id/addons", handler.AddAddOns)

			staff.POST("/sync", handler.RunSync)

			staff.POST("/shifts/open", handler.OpenShift)
			staff.POST("/shifts/close", handler.CloseShift)
			staff.GET("/shifts/active", handler.GetActiveShift)

			staff.POST("/menu", handler.CreateMenuItem)
			staff.PATCH("/menu/:id", handler.UpdateMenuItem)

			staff.PATCH("/payments/:id", handler.UpdatePayment)
			staff.GET("/payments", handler.ListShiftPayments)

			admin := staff.Group("")
			admin.Use(mw.RequireAdmin())
			{
				admin.POST("/users", handler.CreateUser)
				admin.GET("/licenses", handler.ListLicenses)
				admin.POST("/licenses", handler.CreateLicense)
				admin.POST("/licenses/:id/revoke", handler.RevokeLicense)
			}
		}
	}

	return r
}
