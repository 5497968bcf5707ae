package model

import "time"

// PriceTier is a tenant-scoped named price.  It is read-only to this service.
type PriceTier struct {
    ID         uint64 `json:"id"`
    TenantID   uint64 `json:"-"`
    Name       string `json:"name"`
    PriceCents int64  `json:"price_cents"`
    Color      string `json:"color,omitempty"`
}

// PriceOverride is a time-windowed price substitution for one seat, written
// by the external pricing-rules engine.  The window is inclusive on both ends.
type PriceOverride struct {
    ID             uint64
    TenantID       uint64
    EventSeatingID uint64
    SeatUID        string
    PriceCents     int64
    EffectiveFrom  time.Time
    EffectiveTo    time.Time
    SourceRuleID   *uint64
}

// ActiveAt reports whether the override window contains t.
func (o PriceOverride) ActiveAt(t time.Time) bool {
    return !t.Before(o.EffectiveFrom) && !t.After(o.EffectiveTo)
}

// SeatPriceBasis is what storage knows about the base price of one seat:
// the per-seat override and the tier price, either of which may be absent.
type SeatPriceBasis struct {
    SeatUID            string
    PriceCentsOverride *int64
    TierID             *uint64
    TierPriceCents     *int64
}
