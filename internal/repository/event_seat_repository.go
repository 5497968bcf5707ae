package repository // repository for per-event seat inventory

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// EventSeatRepo encapsulates database operations for event_seats.  Every
// method is scoped to the tenant carried by ctx and joins the transaction
// in ctx when there is one.
type EventSeatRepo struct {
    db *sql.DB
}

// NewEventSeatRepo constructs an EventSeatRepo given a DB handle.
func NewEventSeatRepo(db *sql.DB) *EventSeatRepo {
    return &EventSeatRepo{db: db}
}

const eventSeatColumns = `id, tenant_id, event_seating_id, seat_uid, section_name, row_label, seat_label,
    status, version, price_tier_id, price_cents_override, order_reference, session_uid, updated_at`

func scanEventSeat(rows *sql.Rows) (model.EventSeat, error) {
    var (
        s        model.EventSeat
        status   string
        tierID   sql.NullInt64
        override sql.NullInt64
        orderRef sql.NullString
        session  sql.NullString
    )
    err := rows.Scan(&s.ID, &s.TenantID, &s.EventSeatingID, &s.SeatUID, &s.SectionName, &s.RowLabel, &s.SeatLabel,
        &status, &s.Version, &tierID, &override, &orderRef, &session, &s.UpdatedAt)
    if err != nil {
        return s, err
    }
    s.Status = model.SeatStatus(status)
    if tierID.Valid {
        v := uint64(tierID.Int64)
        s.PriceTierID = &v
    }
    if override.Valid {
        v := override.Int64
        s.PriceCentsOverride = &v
    }
    if orderRef.Valid {
        v := orderRef.String
        s.OrderReference = &v
    }
    if session.Valid {
        v := session.String
        s.SessionUID = &v
    }
    return s, nil
}

func (r *EventSeatRepo) query(ctx context.Context, q string, args ...any) ([]model.EventSeat, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.EventSeat
    for rows.Next() {
        s, err := scanEventSeat(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// SeatsByUID loads the requested seats of one event seating.  Unknown uids,
// and uids of another tenant, are simply absent from the result.
func (r *EventSeatRepo) SeatsByUID(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.EventSeat, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    if len(seatUIDs) == 0 {
        return nil, nil
    }
    args := append([]any{tid, eventSeatingID}, stringArgs(seatUIDs)...)
    return r.query(ctx, `SELECT `+eventSeatColumns+` FROM event_seats
        WHERE tenant_id = ? AND event_seating_id = ? AND seat_uid IN (`+inClause(len(seatUIDs))+`)`, args...)
}

// ListSeats returns every seat of an event seating ordered by section, row
// and seat label.
func (r *EventSeatRepo) ListSeats(ctx context.Context, eventSeatingID uint64) ([]model.EventSeat, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    return r.query(ctx, `SELECT `+eventSeatColumns+` FROM event_seats
        WHERE tenant_id = ? AND event_seating_id = ?
        ORDER BY section_name, row_label, seat_label, seat_uid`, tid, eventSeatingID)
}

// TransitionSeat applies one conditional status update.  It returns false,
// without error, when the row no longer matches the expected version,
// status or owner; the caller reports that as a per-seat conflict.
func (r *EventSeatRepo) TransitionSeat(ctx context.Context, t model.SeatTransition) (bool, error) {
    tid, err := scope(ctx)
    if err != nil {
        return false, err
    }
    q := `UPDATE event_seats
          SET status = ?, version = version + 1, session_uid = ?,
              order_reference = COALESCE(?, order_reference), updated_at = UTC_TIMESTAMP(3)
          WHERE tenant_id = ? AND event_seating_id = ? AND seat_uid = ? AND version = ? AND status = ?`
    args := []any{string(t.To), nullString(t.SessionUID), nullString(t.OrderReference),
        tid, t.EventSeatingID, t.SeatUID, t.ExpectedVersion, string(t.From)}
    if t.ExpectSession != nil {
        q += ` AND session_uid = ?`
        args = append(args, *t.ExpectSession)
    }
    res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// CreateSeats inserts materialized seats in chunks.  TenantID is stamped
// from ctx; Version starts at 1 regardless of the passed value.
func (r *EventSeatRepo) CreateSeats(ctx context.Context, seats []model.EventSeat) error {
    tid, err := scope(ctx)
    if err != nil {
        return err
    }
    const chunk = 500
    for start := 0; start < len(seats); start += chunk {
        end := start + chunk
        if end > len(seats) {
            end = len(seats)
        }
        query := `INSERT INTO event_seats (tenant_id, event_seating_id, seat_uid, section_name, row_label, seat_label,
            status, version, price_tier_id, price_cents_override, updated_at) VALUES `
        args := make([]any, 0, (end-start)*10)
        for i, s := range seats[start:end] {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?, ?, ?, ?, 1, ?, ?, UTC_TIMESTAMP(3))"
            args = append(args, tid, s.EventSeatingID, s.SeatUID, s.SectionName, s.RowLabel, s.SeatLabel,
                string(s.Status), nullUint64(s.PriceTierID), nullInt64(s.PriceCentsOverride))
        }
        if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
            if isDuplicateKey(err) {
                return ErrConflict
            }
            return err
        }
    }
    return nil
}

// CountActiveHolds returns how many unexpired holds the session has in the
// event seating at now.
func (r *EventSeatRepo) CountActiveHolds(ctx context.Context, eventSeatingID uint64, sessionUID string, now time.Time) (int, error) {
    tid, err := scope(ctx)
    if err != nil {
        return 0, err
    }
    var n int
    err = conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM seat_holds
         WHERE tenant_id = ? AND event_seating_id = ? AND session_uid = ? AND expires_at >= ?`,
        tid, eventSeatingID, sessionUID, now.UTC(),
    ).Scan(&n)
    return n, err
}

func nullString(s *string) any {
    if s == nil {
        return nil
    }
    return *s
}

func nullInt64(v *int64) any {
    if v == nil {
        return nil
    }
    return *v
}

func nullUint64(v *uint64) any {
    if v == nil {
        return nil
    }
    return *v
}
