package model

import "time"

// SeatHold is an active lease on one EventSeat.  A hold exists exactly
// while its seat is in the held status; it is deleted on release, confirm,
// block or sweep.
//
// Fields:
//  ID             – primary key identifier.
//  TenantID       – owning tenant.
//  EventSeatingID – event seating of the held seat.
//  SeatUID        – seat being held.
//  SessionUID     – browser session that owns the lease.
//  HoldToken      – opaque token returned to the client for correlation.
//  ExpiresAt      – when the lease lapses.
//  CreatedAt      – when the hold was created.
type SeatHold struct {
    ID             uint64    // seat_holds.id
    TenantID       uint64    // seat_holds.tenant_id
    EventSeatingID uint64    // seat_holds.event_seating_id
    SeatUID        string    // seat_holds.seat_uid
    SessionUID     string    // seat_holds.session_uid
    HoldToken      string    // seat_holds.hold_token
    ExpiresAt      time.Time // seat_holds.expires_at
    CreatedAt      time.Time // seat_holds.created_at
}

// Expired reports whether the lease has lapsed at now.  A hold is still valid
// at exactly its expiry instant.
func (h SeatHold) Expired(now time.Time) bool {
    return now.After(h.ExpiresAt)
}
