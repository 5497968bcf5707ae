package model

import "time"

// SeatStatus is the lifecycle state of an EventSeat.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatHeld      SeatStatus = "held"
    SeatSold      SeatStatus = "sold"
    SeatBlocked   SeatStatus = "blocked"
)

// EventSeat is the sellable unit: one seat of one event.  Status is only
// ever changed through a compare-and-swap on Version.
//
// Fields:
//  ID                 – primary key identifier.
//  EventSeatingID     – the event seating layout this seat belongs to.
//  TenantID           – owning tenant, copied from the event seating.
//  SeatUID            – stable key of the seat within the event.
//  SectionName        – denormalized section name for display.
//  RowLabel/SeatLabel – human labels.
//  Status             – available, held, sold or blocked.
//  Version            – starts at 1 and grows by one per accepted transition.
//  PriceTierID        – tier supplying the base price (nullable).
//  PriceCentsOverride – per-seat base price replacing the tier (nullable).
//  OrderReference     – stamped on confirm (nullable).
//  SessionUID         – owner while held (nullable).
//  UpdatedAt          – last modification.
type EventSeat struct {
    ID                 uint64     `json:"-"`
    EventSeatingID     uint64     `json:"event_seating_id"`
    TenantID           uint64     `json:"-"`
    SeatUID            string     `json:"seat_uid"`
    SectionName        string     `json:"section_name"`
    RowLabel           string     `json:"row_label"`
    SeatLabel          string     `json:"seat_label"`
    Status             SeatStatus `json:"status"`
    Version            uint32     `json:"version"`
    PriceTierID        *uint64    `json:"price_tier_id,omitempty"`
    PriceCentsOverride *int64     `json:"price_cents_override,omitempty"`
    OrderReference     *string    `json:"-"`
    SessionUID         *string    `json:"-"`
    UpdatedAt          time.Time  `json:"updated_at"`
}

// HeldBy reports whether the seat is currently held by the given session.
func (s EventSeat) HeldBy(sessionUID string) bool {
    return s.Status == SeatHeld && s.SessionUID != nil && *s.SessionUID == sessionUID
}

// SeatTransition describes one conditional status update.  The update only
// applies when the stored row still has ExpectedVersion and From, and, when
// ExpectSession is set, is owned by that session.  On success the version is
// incremented by exactly one, SessionUID is replaced (nil clears it) and
// OrderReference is stamped when non-nil.
type SeatTransition struct {
    EventSeatingID  uint64
    SeatUID         string
    ExpectedVersion uint32
    From            SeatStatus
    To              SeatStatus
    ExpectSession   *string
    SessionUID      *string
    OrderReference  *string
}
