package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/iliyamo/seat-inventory/internal/model"
)

// EventSeatingRepo manages event_seating_layouts, the binding between an
// event and the template its seats were materialized from.
type EventSeatingRepo struct {
    db *sql.DB
}

// NewEventSeatingRepo constructs an EventSeatingRepo.
func NewEventSeatingRepo(db *sql.DB) *EventSeatingRepo { return &EventSeatingRepo{db: db} }

// CreateEventSeating inserts the binding and returns its id.  Only one
// binding may exist per event; a second one yields ErrConflict.
func (r *EventSeatingRepo) CreateEventSeating(ctx context.Context, es model.EventSeatingLayout) (uint64, error) {
    tid, err := scope(ctx)
    if err != nil {
        return 0, err
    }
    geom, err := json.Marshal(es.Geometry)
    if err != nil {
        return 0, fmt.Errorf("encode geometry: %w", err)
    }
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO event_seating_layouts (tenant_id, event_id, layout_id, status, geometry, published_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
        tid, es.EventID, es.LayoutID, es.Status, geom, es.PublishedAt.UTC(),
    )
    if err != nil {
        if isDuplicateKey(err) {
            return 0, ErrConflict
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// EventSeatingByEventID returns the active binding for an event.
func (r *EventSeatingRepo) EventSeatingByEventID(ctx context.Context, eventID uint64) (model.EventSeatingLayout, error) {
    return r.get(ctx, `event_id = ?`, eventID)
}

// EventSeatingByID returns a binding by its own id.
func (r *EventSeatingRepo) EventSeatingByID(ctx context.Context, id uint64) (model.EventSeatingLayout, error) {
    return r.get(ctx, `id = ?`, id)
}

func (r *EventSeatingRepo) get(ctx context.Context, where string, arg uint64) (model.EventSeatingLayout, error) {
    var es model.EventSeatingLayout
    tid, err := scope(ctx)
    if err != nil {
        return es, err
    }
    var geom []byte
    err = conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, tenant_id, event_id, layout_id, status, geometry, published_at
         FROM event_seating_layouts WHERE tenant_id = ? AND status = ? AND `+where,
        tid, model.EventSeatingActive, arg,
    ).Scan(&es.ID, &es.TenantID, &es.EventID, &es.LayoutID, &es.Status, &geom, &es.PublishedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return es, ErrNotFound
    }
    if err != nil {
        return es, err
    }
    if err := json.Unmarshal(geom, &es.Geometry); err != nil {
        return es, fmt.Errorf("decode geometry of event seating %d: %w", es.ID, err)
    }
    return es, nil
}
