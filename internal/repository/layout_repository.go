package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// LayoutRepo stores imported venue templates.  The geometry is kept as one
// JSON document per layout; it is only ever read and written whole.
type LayoutRepo struct {
    db *sql.DB
}

// NewLayoutRepo constructs a LayoutRepo.
func NewLayoutRepo(db *sql.DB) *LayoutRepo { return &LayoutRepo{db: db} }

// CreateLayout inserts a layout for the tenant in ctx and returns its id.
func (r *LayoutRepo) CreateLayout(ctx context.Context, l model.SeatingLayout) (uint64, error) {
    tid, err := scope(ctx)
    if err != nil {
        return 0, err
    }
    geom, err := json.Marshal(l.Geometry)
    if err != nil {
        return 0, fmt.Errorf("encode geometry: %w", err)
    }
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO seating_layouts (tenant_id, name, geometry) VALUES (?, ?, ?)`,
        tid, l.Name, geom,
    )
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// LayoutByID loads a layout of the caller's tenant.
func (r *LayoutRepo) LayoutByID(ctx context.Context, id uint64) (model.SeatingLayout, error) {
    var l model.SeatingLayout
    tid, err := scope(ctx)
    if err != nil {
        return l, err
    }
    var geom []byte
    err = conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, tenant_id, name, geometry, created_at FROM seating_layouts WHERE id = ? AND tenant_id = ?`,
        id, tid,
    ).Scan(&l.ID, &l.TenantID, &l.Name, &geom, &l.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return l, ErrNotFound
    }
    if err != nil {
        return l, err
    }
    if err := json.Unmarshal(geom, &l.Geometry); err != nil {
        return l, fmt.Errorf("decode geometry of layout %d: %w", id, err)
    }
    return l, nil
}
