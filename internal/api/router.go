package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"lock-sync-backend/config"
	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/mw"
	"lock-sync-backend/internal/store"
)

// NewHistoryCache creates the response cache for the history endpoint.
func NewHistoryCache(cfg config.ServerConfig) *cache.Cache {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return cache.New(ttl, 2*ttl)
}

// HistoryInvalidator returns a callback that drops the cached history of one lock.
func HistoryInvalidator(historyCache *cache.Cache) func(lockID string) {
	return func(lockID string) {
		mw.Invalidate(historyCache, "/api/locks/"+lockID+"/")
	}
}

// NewRouter creates and configures a new Gin router. A nil historyCache gets a private one.
func NewRouter(svc *lock.Service, s store.Store, webpushOptions *webpush.Options, cfg config.ServerConfig, historyCache *cache.Cache) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	handler := NewHandler(svc, s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), int(cfg.RateLimitPerSec)/2+1)

	if historyCache == nil {
		historyCache = NewHistoryCache(cfg)
	}
	caching := mw.Cache(historyCache, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	// Push events from the vendor are not rate limited.
	r.POST("/api/webhook", handler.PostWebhook)
	r.POST("/api/webhook/pin", handler.PostPinWebhook)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/locks", handler.ListLocks)
		api.POST("/locks", handler.PostLock)
		api.GET("/locks/:id", handler.GetLock)
		api.DELETE("/locks/:id", handler.DeleteLock)
		api.PUT("/locks/:id/state", handler.PutLockState)
		api.POST("/locks/:id/battery", handler.PostBatteryRefresh)
		api.POST("/locks/:id/pins", handler.PostPIN)
		api.DELETE("/locks/:id/pins", handler.DeletePIN)
		api.GET("/locks/:id/history", caching, handler.GetHistory)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
