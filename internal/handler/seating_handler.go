package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-inventory/internal/logger"
    "github.com/iliyamo/seat-inventory/internal/model"
    "github.com/iliyamo/seat-inventory/internal/service"
)

// SeatingReader is what the public seating endpoints need.
type SeatingReader interface {
    Seating(ctx context.Context, eventID uint64) (service.SeatingView, error)
    SeatsWithPrices(ctx context.Context, eventID uint64) ([]service.SeatView, error)
}

// SeatingHandler serves seat maps and seat statuses for an event.
type SeatingHandler struct {
    svc SeatingReader
    log *logger.Logger
}

// NewSeatingHandler builds the handler.
func NewSeatingHandler(svc SeatingReader, log *logger.Logger) *SeatingHandler {
    return &SeatingHandler{svc: svc, log: log}
}

// GetSeating handles GET /events/:id/seating.  It returns the frozen
// geometry, background and price tiers of the event's active seating.
func (h *SeatingHandler) GetSeating(c echo.Context) error {
    eventID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    view, err := h.svc.Seating(c.Request().Context(), eventID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    es := view.EventSeating
    return c.JSON(http.StatusOK, echo.Map{
        "event_seating_id": es.ID,
        "event_id":         es.EventID,
        "geometry":         es.Geometry,
        "background_url":   es.Geometry.BackgroundURL,
        "tiers":            view.Tiers,
        "published_at":     es.PublishedAt,
    })
}

// GetSeats handles GET /events/:id/seats.  Each seat carries its status,
// version and effective price; an optional ?status= filters the list.
func (h *SeatingHandler) GetSeats(c echo.Context) error {
    eventID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    seats, err := h.svc.SeatsWithPrices(c.Request().Context(), eventID)
    if err != nil {
        return writeError(c, h.log, err)
    }
    if st := c.QueryParam("status"); st != "" {
        filtered := seats[:0]
        for _, s := range seats {
            if s.Status == model.SeatStatus(st) {
                filtered = append(filtered, s)
            }
        }
        seats = filtered
    }
    return c.JSON(http.StatusOK, echo.Map{"seats": seats, "count": len(seats)})
}

func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err == nil && id == 0 {
        err = strconv.ErrRange
    }
    return id, err
}
