package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/interfaces/http/handler"
	"github.com/souq/backend/internal/interfaces/http/middleware"
)

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Sync     *handler.SyncHandler
	Webhook  *handler.WebhookHandler
	Tracking *handler.TrackingHandler
	Trending *handler.TrendingHandler
	Health   *handler.HealthHandler
}

// Guards holds the per-group middleware. Nil entries are skipped.
type Guards struct {
	// Authenticate validates the bearer token (JWTAuthMiddleware)
	Authenticate gin.HandlerFunc
	// TrackingLimit throttles the public storefront endpoints
	TrackingLimit gin.HandlerFunc
	// WebhookLimit throttles webhook deliveries
	WebhookLimit gin.HandlerFunc
}

// SetupRoutes registers every marketplace route on the engine:
//
//	POST     /api/v1/merchants/:merchant_id/sync         bearer, merchant or admin
//	GET      /api/v1/merchants/:merchant_id/sync/status  bearer, merchant or admin
//	POST     /api/v1/webhooks/:platform                  platform signature
//	POST     /api/v1/products/:product_id/click          public
//	POST     /api/v1/products/:product_id/events         public
//	GET|POST /api/v1/trending/recompute                  bearer, admin
//	GET      /health                                     public
func SetupRoutes(engine *gin.Engine, h Handlers, g Guards, opts ...RouterOption) *Router {
	r := NewRouter(engine, opts...).Mount(
		Group{
			Name:       "merchants",
			Prefix:     "/merchants/:merchant_id",
			Middleware: []gin.HandlerFunc{g.Authenticate, middleware.RequireMerchantAccess("merchant_id")},
			Routes: []Route{
				{Method: http.MethodPost, Path: "/sync", Handlers: []gin.HandlerFunc{h.Sync.Sync}},
				{Method: http.MethodGet, Path: "/sync/status", Handlers: []gin.HandlerFunc{h.Sync.Status}},
			},
		},
		Group{
			Name:       "webhooks",
			Prefix:     "/webhooks",
			Middleware: []gin.HandlerFunc{g.WebhookLimit},
			Routes: []Route{
				{Method: http.MethodPost, Path: "/:platform", Handlers: []gin.HandlerFunc{h.Webhook.Receive}},
			},
		},
		Group{
			Name:       "products",
			Prefix:     "/products/:product_id",
			Middleware: []gin.HandlerFunc{g.TrackingLimit},
			Routes: []Route{
				{Method: http.MethodPost, Path: "/click", Handlers: []gin.HandlerFunc{h.Tracking.Click}},
				{Method: http.MethodPost, Path: "/events", Handlers: []gin.HandlerFunc{h.Tracking.Event}},
			},
		},
		Group{
			Name:       "trending",
			Prefix:     "/trending",
			Middleware: []gin.HandlerFunc{g.Authenticate, middleware.RequireAdmin()},
			Routes: []Route{
				{Method: http.MethodGet, Path: "/recompute", Handlers: []gin.HandlerFunc{h.Trending.Recompute}},
				{Method: http.MethodPost, Path: "/recompute", Handlers: []gin.HandlerFunc{h.Trending.Recompute}},
			},
		},
	)

	engine.GET("/health", h.Health.Health)
	return r
}
