package model

import "time"

// SeatingLayout is a reusable venue template owned by one tenant.  It is
// produced by the layout importer and is immutable afterwards except for an
// administrative re-import, which replaces Geometry wholesale.
//
// Fields:
//  ID        – primary key identifier.
//  TenantID  – owning tenant.
//  Name      – display name chosen by the operator.
//  Geometry  – sections, seats and canvas information (stored as JSON).
//  CreatedAt – timestamp when the layout was imported.
type SeatingLayout struct {
    ID        uint64         `json:"id"`
    TenantID  uint64         `json:"tenant_id"`
    Name      string         `json:"name"`
    Geometry  LayoutGeometry `json:"geometry"`
    CreatedAt time.Time      `json:"created_at"`
}

// LayoutGeometry is the normalized drawing of a venue.
type LayoutGeometry struct {
    CanvasWidth   float64           `json:"canvas_width"`
    CanvasHeight  float64           `json:"canvas_height"`
    ViewBox       *ViewBox          `json:"view_box,omitempty"`
    BackgroundURL string            `json:"background_url,omitempty"`
    Sections      []GeometrySection `json:"sections"`
}

// ViewBox mirrors the SVG viewBox attribute.
type ViewBox struct {
    X      float64 `json:"x"`
    Y      float64 `json:"y"`
    Width  float64 `json:"width"`
    Height float64 `json:"height"`
}

// BoundingBox is the axis-aligned extent of a section.
type BoundingBox struct {
    X      float64 `json:"x"`
    Y      float64 `json:"y"`
    Width  float64 `json:"width"`
    Height float64 `json:"height"`
}

// GeometrySection is a named polygon region of the layout.
type GeometrySection struct {
    ExternalID string         `json:"external_id"`       // id attribute from the markup
    Code       string         `json:"code"`              // short code used to build seat uids
    Name       string         `json:"name"`              // display name
    CategoryID *string        `json:"category_id"`       // pricing category, nil when absent
    Selectable bool           `json:"selectable"`        // false for decorative areas
    Points     [][2]float64   `json:"points"`            // ordered polygon vertices
    Bounds     BoundingBox    `json:"bounds"`            // derived from Points
    Seats      []GeometrySeat `json:"seats"`             // seats assigned to this section
}

// GeometrySeat is a template seat.  Template seats are never sold directly;
// activation materializes one EventSeat per template seat.
type GeometrySeat struct {
    ExternalID string  `json:"external_id"`
    UID        string  `json:"seat_uid"`
    CX         float64 `json:"cx"`
    CY         float64 `json:"cy"`
    CategoryID *string `json:"category_id"`
    Selectable bool    `json:"selectable"`
    Allocated  bool    `json:"allocated"`
    RowLabel   string  `json:"row_label"`
    SeatLabel  string  `json:"seat_label"`
}

// SeatCount returns the number of template seats across all sections.
func (g LayoutGeometry) SeatCount() int {
    n := 0
    for _, s := range g.Sections {
        n += len(s.Seats)
    }
    return n
}
