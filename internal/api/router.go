package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "nefrit/internal/api/context"
	"nefrit/internal/api/handlers"
	"nefrit/internal/api/middleware"
)

type Dependencies struct {
	IndexHandler        *handlers.IndexHandler
	HealthHandler       *handlers.HealthHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	TunnelHandler       *handlers.TunnelHandler
	AuthHandler         *handlers.AuthHandler
	AdminHandler        *handlers.AdminHandler
	AuthMiddleware      *middleware.AuthMiddleware

	// TunnelPath is the public relay route; it must match the path clients
	// receive in their subscription descriptor.
	TunnelPath string
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/", wrap(deps.IndexHandler.Handle))
	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Subscription fetch by opaque path slug
	router.GET("/sub/:path", chain(deps.SubscriptionHandler.Fetch, middleware.RateLimit("subscription")))
	router.GET("/sub/:path/qr", chain(deps.SubscriptionHandler.QRCode, middleware.RateLimit("subscription")))

	// Relay endpoint (websocket upgrade)
	router.GET(deps.TunnelPath, wrap(deps.TunnelHandler.Handle))

	// Administrative API
	authMid := deps.AuthMiddleware

	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, middleware.RateLimit("login")))
	router.POST("/api/v1/admin/activate", chain(deps.AdminHandler.Activate, authMid.Handle))
	router.GET("/api/v1/admin/accounts/:user_id", chain(deps.AdminHandler.AccountStatus, authMid.Handle))
	router.POST("/api/v1/admin/keys", chain(deps.AdminHandler.CreateKey, authMid.Handle))
	router.GET("/api/v1/admin/keys", chain(deps.AdminHandler.ListKeys, authMid.Handle))
	router.DELETE("/api/v1/admin/keys/:key_id", chain(deps.AdminHandler.RevokeKey, authMid.Handle))
	router.GET("/api/v1/admin/stats", chain(deps.AdminHandler.Stats, authMid.Handle))
	router.POST("/api/v1/admin/restart", chain(deps.AdminHandler.Restart, authMid.Handle))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
