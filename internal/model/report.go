package model

// SeatStatusCount is one row of the cross-tenant inventory report.
type SeatStatusCount struct {
    TenantID       uint64     `json:"tenant_id"`
    EventSeatingID uint64     `json:"event_seating_id"`
    Status         SeatStatus `json:"status"`
    Count          int        `json:"count"`
}
