package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-inventory/internal/logger"
    "github.com/iliyamo/seat-inventory/internal/pricing"
    "github.com/iliyamo/seat-inventory/internal/repository"
    "github.com/iliyamo/seat-inventory/internal/service"
    "github.com/iliyamo/seat-inventory/internal/tenant"
)

// writeError maps domain errors onto HTTP responses.  Anything unknown is a
// 500 and is logged; the client only sees a generic message.
func writeError(c echo.Context, log *logger.Logger, err error) error {
    switch {
    case errors.Is(err, service.ErrInvalidInput), errors.Is(err, tenant.ErrMissing):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
    case errors.Is(err, pricing.ErrPricingDataMissing):
        return c.JSON(http.StatusConflict, echo.Map{"error": "pricing data missing"})
    case errors.Is(err, service.ErrEmptyLayout):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "layout has no seats"})
    case errors.Is(err, service.ErrUnknownTier):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unknown price tier"})
    }
    log.ErrorContext(c.Request().Context(), "request failed",
        "method", c.Request().Method, "path", c.Path(), "error", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bindValid binds the body into dst and runs the registered validator.  The
// returned *echo.HTTPError is rendered by ErrorHandler.
func bindValid(c echo.Context, dst any) error {
    if err := c.Bind(dst); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
    }
    if err := c.Validate(dst); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, err.Error())
    }
    return nil
}

// ErrorHandler renders echo errors in the same {"error": "..."} shape the
// handlers use.
func ErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }
    code := http.StatusInternalServerError
    msg := "internal error"
    var he *echo.HTTPError
    if errors.As(err, &he) {
        code = he.Code
        if s, ok := he.Message.(string); ok {
            msg = s
        } else {
            msg = http.StatusText(code)
        }
    }
    if c.Request().Method == http.MethodHead {
        _ = c.NoContent(code)
        return
    }
    _ = c.JSON(code, echo.Map{"error": msg})
}
