package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-inventory/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /admin.  All of them
// require the ADMIN role; the tenant is taken from the token.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.TenantScope(),
	)
	g.POST("/layouts", d.Admin.ImportLayout)
	g.POST("/events/:id/seating", d.Admin.ActivateSeating)
	g.POST("/seats/block", d.Admin.BlockSeats)
	g.POST("/event-seatings/:id/pricing/invalidate", d.Admin.InvalidatePricing)
	g.GET("/reports/seat-status", d.Admin.SeatStatusReport)
}
