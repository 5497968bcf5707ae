package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-inventory/internal/logger"
    "github.com/iliyamo/seat-inventory/internal/middleware"
    "github.com/iliyamo/seat-inventory/internal/service"
)

// HoldEngine is the hold/lease engine as seen by HTTP.
type HoldEngine interface {
    HoldSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID string) (service.HoldResult, error)
    ReleaseSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID string) ([]string, error)
    ConfirmPurchase(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID, orderReference string) (service.ConfirmResult, error)
    BlockSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]string, error)
}

type seatsRequest struct {
    EventSeatingID uint64   `json:"event_seating_id" validate:"required"`
    SeatUIDs       []string `json:"seat_uids" validate:"required,min=1,max=100,dive,required,max=64"`
}

type confirmRequest struct {
    EventSeatingID uint64   `json:"event_seating_id" validate:"required"`
    SeatUIDs       []string `json:"seat_uids" validate:"required,min=1,max=100,dive,required,max=64"`
    SessionUID     string   `json:"session_uid" validate:"required,max=64"`
    OrderReference string   `json:"order_reference" validate:"required,max=64"`
}

// HoldHandler exposes hold, release and the confirm hook.
type HoldHandler struct {
    engine HoldEngine
    log    *logger.Logger
}

// NewHoldHandler builds the handler.
func NewHoldHandler(engine HoldEngine, log *logger.Logger) *HoldHandler {
    return &HoldHandler{engine: engine, log: log}
}

func sessionFrom(c echo.Context) (string, bool) {
    s := c.Request().Header.Get(middleware.HeaderSessionID)
    return s, s != "" && len(s) <= 64
}

// Hold handles POST /seats/hold.  Seats are evaluated independently, so a
// partial result is still 200; the body lists held and failed seats.
func (h *HoldHandler) Hold(c echo.Context) error {
    session, ok := sessionFrom(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Session-ID header is required"})
    }
    var req seatsRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    res, err := h.engine.HoldSeats(c.Request().Context(), req.EventSeatingID, req.SeatUIDs, session)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Release handles DELETE /seats/hold.  Releasing seats the session does not
// hold is not an error.
func (h *HoldHandler) Release(c echo.Context) error {
    session, ok := sessionFrom(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Session-ID header is required"})
    }
    var req seatsRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    released, err := h.engine.ReleaseSeats(c.Request().Context(), req.EventSeatingID, req.SeatUIDs, session)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Confirm handles POST /internal/seats/confirm, called by the order
// pipeline once payment is captured.  A rejected batch answers 409 with the
// per-seat errors and leaves every seat untouched.
func (h *HoldHandler) Confirm(c echo.Context) error {
    var req confirmRequest
    if err := bindValid(c, &req); err != nil {
        return err
    }
    res, err := h.engine.ConfirmPurchase(c.Request().Context(), req.EventSeatingID, req.SeatUIDs, req.SessionUID, req.OrderReference)
    if err != nil {
        return writeError(c, h.log, err)
    }
    if !res.Success {
        return c.JSON(http.StatusConflict, res)
    }
    return c.JSON(http.StatusOK, res)
}
