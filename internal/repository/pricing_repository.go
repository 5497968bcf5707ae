package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// PricingRepo reads price tiers, per-seat base prices and dynamic overrides.
// It never writes prices; the external pricing-rules engine owns them.
type PricingRepo struct {
    db *sql.DB
}

// NewPricingRepo constructs a PricingRepo.
func NewPricingRepo(db *sql.DB) *PricingRepo { return &PricingRepo{db: db} }

// BasePrices returns the price basis of each requested seat in one query.
// Seats that do not exist in the caller's tenant are absent from the map.
func (r *PricingRepo) BasePrices(ctx context.Context, eventSeatingID uint64, seatUIDs []string) (map[string]model.SeatPriceBasis, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    out := make(map[string]model.SeatPriceBasis, len(seatUIDs))
    if len(seatUIDs) == 0 {
        return out, nil
    }
    args := append([]any{tid, eventSeatingID}, stringArgs(seatUIDs)...)
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT s.seat_uid, s.price_cents_override, s.price_tier_id, t.price_cents
         FROM event_seats s
         LEFT JOIN price_tiers t ON t.id = s.price_tier_id AND t.tenant_id = s.tenant_id
         WHERE s.tenant_id = ? AND s.event_seating_id = ? AND s.seat_uid IN (`+inClause(len(seatUIDs))+`)`,
        args...,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var (
            b         model.SeatPriceBasis
            override  sql.NullInt64
            tierID    sql.NullInt64
            tierPrice sql.NullInt64
        )
        if err := rows.Scan(&b.SeatUID, &override, &tierID, &tierPrice); err != nil {
            return nil, err
        }
        if override.Valid {
            v := override.Int64
            b.PriceCentsOverride = &v
        }
        if tierID.Valid {
            v := uint64(tierID.Int64)
            b.TierID = &v
        }
        if tierPrice.Valid {
            v := tierPrice.Int64
            b.TierPriceCents = &v
        }
        out[b.SeatUID] = b
    }
    return out, rows.Err()
}

// ActiveOverrides returns, per seat, the override whose window contains at.
// When windows overlap the latest effective_from wins, then the highest id.
func (r *PricingRepo) ActiveOverrides(ctx context.Context, eventSeatingID uint64, seatUIDs []string, at time.Time) (map[string]model.PriceOverride, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    out := make(map[string]model.PriceOverride)
    if len(seatUIDs) == 0 {
        return out, nil
    }
    at = at.UTC()
    args := append([]any{tid, eventSeatingID}, stringArgs(seatUIDs)...)
    args = append(args, at, at)
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT id, tenant_id, event_seating_id, seat_uid, price_cents, effective_from, effective_to, source_rule_id
         FROM dynamic_price_overrides
         WHERE tenant_id = ? AND event_seating_id = ? AND seat_uid IN (`+inClause(len(seatUIDs))+`)
           AND effective_from <= ? AND effective_to >= ?
         ORDER BY effective_from DESC, id DESC`,
        args...,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var (
            o    model.PriceOverride
            rule sql.NullInt64
        )
        if err := rows.Scan(&o.ID, &o.TenantID, &o.EventSeatingID, &o.SeatUID, &o.PriceCents,
            &o.EffectiveFrom, &o.EffectiveTo, &rule); err != nil {
            return nil, err
        }
        if rule.Valid {
            v := uint64(rule.Int64)
            o.SourceRuleID = &v
        }
        if _, seen := out[o.SeatUID]; !seen {
            out[o.SeatUID] = o
        }
    }
    return out, rows.Err()
}

// TiersForEventSeating lists the tiers referenced by an event seating's seats.
func (r *PricingRepo) TiersForEventSeating(ctx context.Context, eventSeatingID uint64) ([]model.PriceTier, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT t.id, t.tenant_id, t.name, t.price_cents, t.color
         FROM price_tiers t
         WHERE t.tenant_id = ? AND t.id IN (
             SELECT DISTINCT price_tier_id FROM event_seats
             WHERE tenant_id = ? AND event_seating_id = ? AND price_tier_id IS NOT NULL)
         ORDER BY t.price_cents DESC, t.id`,
        tid, tid, eventSeatingID,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tiers []model.PriceTier
    for rows.Next() {
        var t model.PriceTier
        if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.PriceCents, &t.Color); err != nil {
            return nil, err
        }
        tiers = append(tiers, t)
    }
    return tiers, rows.Err()
}

// TierIDs returns the subset of ids that exist in the caller's tenant.
func (r *PricingRepo) TierIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    out := make(map[uint64]bool, len(ids))
    if len(ids) == 0 {
        return out, nil
    }
    args := []any{tid}
    for _, id := range ids {
        args = append(args, id)
    }
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT id FROM price_tiers WHERE tenant_id = ? AND id IN (`+inClause(len(ids))+`)`, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out[id] = true
    }
    return out, rows.Err()
}
