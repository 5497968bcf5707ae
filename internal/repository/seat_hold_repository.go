package repository

import (
    "context"
    "database/sql"

    "github.com/google/uuid"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  It is
// responsible for creating, listing and deleting seat holds.  All
// timestamps are written and compared in UTC.
type SeatHoldRepo struct {
    db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// NewHoldToken returns the opaque token handed back to the client for a hold.
func NewHoldToken() string { return uuid.NewString() }

// CreateHold inserts a hold for the tenant in ctx.  A second hold on the
// same seat violates the unique key and is reported as ErrConflict.
func (r *SeatHoldRepo) CreateHold(ctx context.Context, h model.SeatHold) error {
    tid, err := scope(ctx)
    if err != nil {
        return err
    }
    if h.HoldToken == "" {
        h.HoldToken = NewHoldToken()
    }
    _, err = conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO seat_holds (tenant_id, event_seating_id, seat_uid, session_uid, hold_token, expires_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
        tid, h.EventSeatingID, h.SeatUID, h.SessionUID, h.HoldToken, h.ExpiresAt.UTC(),
    )
    if isDuplicateKey(err) {
        return ErrConflict
    }
    return err
}

// LockSessionHolds takes the session's row in session_hold_locks, creating
// it on first use.  The row lock is held until the surrounding transaction
// ends, so concurrent hold transactions of one session run one at a time
// and each sees the holds the previous one committed.  Call it before any
// other read in the transaction.
func (r *SeatHoldRepo) LockSessionHolds(ctx context.Context, eventSeatingID uint64, sessionUID string) error {
    tid, err := scope(ctx)
    if err != nil {
        return err
    }
    _, err = conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO session_hold_locks (tenant_id, event_seating_id, session_uid, touched_at)
         VALUES (?, ?, ?, UTC_TIMESTAMP(3))
         ON DUPLICATE KEY UPDATE touched_at = VALUES(touched_at)`,
        tid, eventSeatingID, sessionUID,
    )
    return err
}

// DeleteHold removes the hold on a seat.  Deleting a missing hold is not an
// error.
func (r *SeatHoldRepo) DeleteHold(ctx context.Context, eventSeatingID uint64, seatUID string) error {
    tid, err := scope(ctx)
    if err != nil {
        return err
    }
    _, err = conn(ctx, r.db).ExecContext(ctx,
        `DELETE FROM seat_holds WHERE tenant_id = ? AND event_seating_id = ? AND seat_uid = ?`,
        tid, eventSeatingID, seatUID,
    )
    return err
}

// HoldsBySeat returns the holds, expired or not, on the given seats.
func (r *SeatHoldRepo) HoldsBySeat(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.SeatHold, error) {
    tid, err := scope(ctx)
    if err != nil {
        return nil, err
    }
    if len(seatUIDs) == 0 {
        return nil, nil
    }
    args := append([]any{tid, eventSeatingID}, stringArgs(seatUIDs)...)
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT `+holdColumns+` FROM seat_holds
         WHERE tenant_id = ? AND event_seating_id = ? AND seat_uid IN (`+inClause(len(seatUIDs))+`)`,
        args...,
    )
    if err != nil {
        return nil, err
    }
    return scanHolds(rows)
}

const holdColumns = `id, tenant_id, event_seating_id, seat_uid, session_uid, hold_token, expires_at, created_at`

func scanHolds(rows *sql.Rows) ([]model.SeatHold, error) {
    defer rows.Close()
    var holds []model.SeatHold
    for rows.Next() {
        var h model.SeatHold
        if err := rows.Scan(&h.ID, &h.TenantID, &h.EventSeatingID, &h.SeatUID, &h.SessionUID,
            &h.HoldToken, &h.ExpiresAt, &h.CreatedAt); err != nil {
            return nil, err
        }
        holds = append(holds, h)
    }
    return holds, rows.Err()
}
