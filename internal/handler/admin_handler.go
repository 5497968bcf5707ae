package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-inventory/internal/logger"
    "github.com/iliyamo/seat-inventory/internal/model"
    "github.com/iliyamo/seat-inventory/internal/service"
)

// LayoutAdmin imports layouts and activates event seatings.
type LayoutAdmin interface {
    Import(ctx context.Context, name, markup string, width, height float64) (model.SeatingLayout, service.ImportStats, error)
    Activate(ctx context.Context, req service.ActivateRequest) (model.EventSeatingLayout, int, error)
}

// CacheInvalidator drops cached prices of an event seating.
type CacheInvalidator interface {
    ClearCache(ctx context.Context, eventSeatingID uint64) error
}

// StatusReporter produces the unscoped inventory report.
type StatusReporter interface {
    SeatStatusReport(ctx context.Context) ([]model.SeatStatusCount, error)
}

type importRequest struct {
    Name   string  `json:"name" validate:"required,max=255"`
    Markup string  `json:"markup" validate:"required"`
    Width  float64 `json:"width" validate:"gte=0"`
    Height float64 `json:"height" validate:"gte=0"`
}

type activateRequest struct {
    LayoutID       uint64            `json:"layout_id" validate:"required"`
    TierByCategory map[string]uint64 `json:"tier_by_category"`
    DefaultTierID  *uint64           `json:"default_tier_id"`
}

// AdminHandler serves the operator endpoints under /admin.
type AdminHandler struct {
    layouts LayoutAdmin
    engine  HoldEngine
    prices  CacheInvalidator
    reports StatusReporter
    log     *logger.Logger
}

// NewAdminHandler builds the handler.
func NewAdminHandler(layouts LayoutAdmin, engine HoldEngine, prices CacheInvalidator, reports StatusReporter, log *logger.Logger) *AdminHandler {
    return &AdminHandler{layouts: layouts, engine: engine, prices: prices, reports: reports, log: log}
}

// ImportLayout handles POST /admin/layouts.
func (h *AdminHandler) ImportLayout(c echo.Context) error {
    var req importRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    layout, stats, err := h.layouts.Import(c.Request().Context(), req.Name, req.Markup, req.Width, req.Height)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"layout_id": layout.ID, "name": layout.Name, "stats": stats})
}

// ActivateSeating handles POST /admin/events/:id/seating.
func (h *AdminHandler) ActivateSeating(c echo.Context) error {
    eventID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    var req activateRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    es, n, err := h.layouts.Activate(c.Request().Context(), service.ActivateRequest{
        EventID:        eventID,
        LayoutID:       req.LayoutID,
        TierByCategory: req.TierByCategory,
        DefaultTierID:  req.DefaultTierID,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"event_seating_id": es.ID, "event_id": es.EventID, "seats": n})
}

// BlockSeats handles POST /admin/seats/block.
func (h *AdminHandler) BlockSeats(c echo.Context) error {
    var req seatsRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    blocked, err := h.engine.BlockSeats(c.Request().Context(), req.EventSeatingID, req.SeatUIDs)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"blocked": blocked})
}

// InvalidatePricing handles POST /admin/event-seatings/:id/pricing/invalidate.
func (h *AdminHandler) InvalidatePricing(c echo.Context) error {
    esID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event seating id"})
    }
    if err := h.prices.ClearCache(c.Request().Context(), esID); err != nil {
        return writeError(c, h.log, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// SeatStatusReport handles GET /admin/reports/seat-status.  The counts
// span every tenant.
func (h *AdminHandler) SeatStatusReport(c echo.Context) error {
    rows, err := h.reports.SeatStatusReport(c.Request().Context())
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"rows": rows})
}
