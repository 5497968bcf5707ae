package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// AdminRepo is the only unscoped data accessor.  It reads across tenants and
// is handed to the expiry sweeper and the reporting endpoint, never to the
// hold, release, confirm or pricing paths.
type AdminRepo struct {
    db *sql.DB
}

// NewAdminRepo constructs an AdminRepo.
func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

// ExpiredHolds returns up to limit holds, of any tenant, that expired
// before the given instant, oldest first.
func (r *AdminRepo) ExpiredHolds(ctx context.Context, before time.Time, limit int) ([]model.SeatHold, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+holdColumns+` FROM seat_holds WHERE expires_at < ? ORDER BY expires_at, id LIMIT ?`,
        before.UTC(), limit,
    )
    if err != nil {
        return nil, err
    }
    return scanHolds(rows)
}

// PurgeSessionLocks deletes session lock rows untouched since before.  A row
// still locked by a running hold transaction makes the delete wait for it.
func (r *AdminRepo) PurgeSessionLocks(ctx context.Context, before time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx, `DELETE FROM session_hold_locks WHERE touched_at < ?`, before.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// SeatStatusReport counts seats per tenant, event seating and status.
func (r *AdminRepo) SeatStatusReport(ctx context.Context) ([]model.SeatStatusCount, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT tenant_id, event_seating_id, status, COUNT(*)
         FROM event_seats GROUP BY tenant_id, event_seating_id, status
         ORDER BY tenant_id, event_seating_id, status`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.SeatStatusCount
    for rows.Next() {
        var (
            c      model.SeatStatusCount
            status string
        )
        if err := rows.Scan(&c.TenantID, &c.EventSeatingID, &status, &c.Count); err != nil {
            return nil, err
        }
        c.Status = model.SeatStatus(status)
        out = append(out, c)
    }
    return out, rows.Err()
}
