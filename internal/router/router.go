// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-inventory/internal/config"
	"github.com/iliyamo/seat-inventory/internal/handler"
	"github.com/iliyamo/seat-inventory/internal/logger"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Seating   *handler.SeatingHandler
	Holds     *handler.HoldHandler
	Admin     *handler.AdminHandler
	JWTSecret string
	Redis     *redis.Client // nil disables response caching and rate limiting
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *logger.Logger
}

// New returns an echo instance with the common middleware installed and
// every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization,
			"X-Tenant-ID", "X-Session-ID"},
	}))
	e.Use(requestLogger(d.Log))

	RegisterRoutes(e, d)
	return e
}

// RegisterRoutes registers the health check and the route groups.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	RegisterSeats(e, d)
	RegisterInternal(e, d)
	RegisterAdmin(e, d)
}

// requestLogger bridges echo's request logger to slog.
func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= 500 {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}
