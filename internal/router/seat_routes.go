package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-inventory/internal/middleware"
)

// RegisterSeats registers the browser-facing endpoints.  The tenant comes
// from X-Tenant-ID; holds additionally need X-Session-ID.  The seat map is
// served through the Redis response cache and hold requests through the
// token bucket.
func RegisterSeats(e *echo.Echo, d Deps) {
	g := e.Group("", middleware.TenantScope())
	g.GET("/events/:id/seating", d.Seating.GetSeating, middleware.NewRedisCache(d.Cache, d.Redis))
	g.GET("/events/:id/seats", d.Seating.GetSeats)
	g.POST("/seats/hold", d.Holds.Hold, middleware.NewTokenBucket(d.RateLimit, d.Redis))
	g.DELETE("/seats/hold", d.Holds.Release)
}

// RegisterInternal registers hooks for the order pipeline.  Callers present
// a service token with the ORDER_SERVICE role and a tid claim.
func RegisterInternal(e *echo.Echo, d Deps) {
	g := e.Group("/internal",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleOrderService),
		middleware.TenantScope(),
	)
	g.POST("/seats/confirm", d.Holds.Confirm)
}
