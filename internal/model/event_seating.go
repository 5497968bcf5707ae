package model

import "time"

// EventSeatingLayout binds a SeatingLayout to one event.  It is created when
// an event activates seating and carries a frozen copy of the geometry so
// later re-imports of the template never move seats under a live event.
type EventSeatingLayout struct {
    ID          uint64         `json:"id"`           // event_seating_layouts.id
    TenantID    uint64         `json:"tenant_id"`    // owning tenant
    EventID     uint64         `json:"event_id"`     // external event identifier
    LayoutID    uint64         `json:"layout_id"`    // template it was built from
    Status      string         `json:"status"`       // "active" once published
    Geometry    LayoutGeometry `json:"geometry"`     // snapshot of the template geometry
    PublishedAt time.Time      `json:"published_at"` // activation time
}

// EventSeatingActive is the only status this service writes.
const EventSeatingActive = "active"
