// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/http/handlers"
	"ridesim/internal/http/middleware"
	"ridesim/internal/metrics"
)

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.CORS(s.cfg.AllowedOrigins))

	var auth []gin.HandlerFunc
	if s.verifier != nil {
		auth = append(auth, middleware.Auth(s.verifier))
	}

	healthHandler := handlers.NewHealthHandler(s.dispatch)
	r.GET("/health", healthHandler.Get)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	socketHandler := handlers.NewSocketHandler(s.dispatch, middleware.AllowOrigin(s.cfg.AllowedOrigins))
	r.GET("/ws", append(auth, socketHandler.Serve)...)

	api := r.Group("/api", middleware.RateLimit(s.cfg.RateLimit, s.cfg.RateWindow), middleware.MaxInFlight(s.cfg.MaxConcurrent))
	api.Use(auth...)

	fleetHandler := handlers.NewFleetHandler(s.fleet, s.nearbyRadius)
	api.GET("/cabs/nearby", fleetHandler.Nearby)
	api.GET("/cabs/status", fleetHandler.Status)
	api.POST("/cabs", fleetHandler.Add)
	api.DELETE("/cabs/:id", fleetHandler.Remove)
	api.POST("/cabs/reset", fleetHandler.Reset)

	routeHandler := handlers.NewRouteHandler(s.routes)
	api.GET("/routes/cache", routeHandler.CacheStats)
	api.DELETE("/routes/cache", routeHandler.ClearCache)

	tripHandler := handlers.NewTripHandler(s.dispatch)
	api.GET("/trips/active", tripHandler.Active)
	api.GET("/trips/history", tripHandler.History)

	if s.verifier != nil {
		userHandler := handlers.NewUserHandler()
		api.GET("/user/profile", userHandler.Profile)
		api.GET("/validate-user", userHandler.Validate)
	}

	return r
}
