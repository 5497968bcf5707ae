package importer

import (
	"math"
	"sort"
)

// Point is a vertex in drawing coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ViewBox mirrors the SVG viewBox attribute.
type ViewBox struct {
	X, Y, Width, Height float64
}

// BoundingBox is the axis-aligned extent of a section.
type BoundingBox struct {
	X, Y, Width, Height float64
}

// Section is a polygon region parsed from a path element.
type Section struct {
	ExternalID string
	Name       string
	CategoryID *string
	Selectable bool
	Points     []Point
	Seats      []*Seat
	Bounds     BoundingBox
}

// Seat is a point marker parsed from a circle element.
type Seat struct {
	ExternalID string
	CX, CY     float64
	CategoryID *string
	Selectable bool
	Allocated  bool
	SectionID  string
	RowLabel   string
	SeatLabel  string
}

// Layout is the result of an import. Sections own the seats that could be
// placed in them; Unassigned keeps the rest so callers can report them.
type Layout struct {
	Sections      []*Section
	Unassigned    []*Seat
	ViewBox       *ViewBox
	CanvasWidth   float64
	CanvasHeight  float64
	BackgroundURL string

	original *snapshot
}

// snapshot is the geometry as parsed, kept so normalization always starts
// from the source coordinates.
type snapshot struct {
	viewBox  *ViewBox
	sections [][]Point
	seats    map[*Seat]Point
}

// SeatCount returns every parsed seat, assigned or not.
func (l *Layout) SeatCount() int {
	n := len(l.Unassigned)
	for _, s := range l.Sections {
		n += len(s.Seats)
	}
	return n
}

// SectionCount returns the number of sections.
func (l *Layout) SectionCount() int { return len(l.Sections) }

// Normalized reports whether NormalizeToCanvas has run.
func (l *Layout) Normalized() bool { return l.original != nil }

// CategoryIDs returns the distinct category ids referenced by sections and
// seats, sorted.
func (l *Layout) CategoryIDs() []string {
	seen := map[string]struct{}{}
	add := func(c *string) {
		if c != nil {
			seen[*c] = struct{}{}
		}
	}
	for _, sec := range l.Sections {
		add(sec.CategoryID)
		for _, st := range sec.Seats {
			add(st.CategoryID)
		}
	}
	for _, st := range l.Unassigned {
		add(st.CategoryID)
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CalculateBoundingBox sets and returns the min/max extent of the section's
// vertices. A section without vertices gets a zero box.
func (s *Section) CalculateBoundingBox() BoundingBox {
	if len(s.Points) == 0 {
		s.Bounds = BoundingBox{}
		return s.Bounds
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range s.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	s.Bounds = BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	return s.Bounds
}

// NormalizeToCanvas fits the drawing into a targetWidth x targetHeight canvas
// with a uniform scale and centres it. Coordinates are rewritten in place,
// but always from the geometry as originally parsed, so calling it again
// (with the same or another size) never compounds the scaling.
func (l *Layout) NormalizeToCanvas(targetWidth, targetHeight float64) {
	if l.original == nil {
		l.original = l.capture()
	}
	l.restore()

	vb, ok := l.sourceExtent()
	if !ok || targetWidth <= 0 || targetHeight <= 0 {
		l.CanvasWidth, l.CanvasHeight = targetWidth, targetHeight
		return
	}
	if l.ViewBox == nil {
		derived := vb
		l.ViewBox = &derived
	}

	var scale float64
	switch {
	case vb.Width > 0 && vb.Height > 0:
		scale = math.Min(targetWidth/vb.Width, targetHeight/vb.Height)
	case vb.Width > 0:
		scale = targetWidth / vb.Width
	case vb.Height > 0:
		scale = targetHeight / vb.Height
	default:
		scale = 1
	}
	offX := (targetWidth - vb.Width*scale) / 2
	offY := (targetHeight - vb.Height*scale) / 2

	tx := func(x, y float64) (float64, float64) {
		return (x-vb.X)*scale + offX, (y-vb.Y)*scale + offY
	}
	for _, sec := range l.Sections {
		for i, p := range sec.Points {
			sec.Points[i].X, sec.Points[i].Y = tx(p.X, p.Y)
		}
		for _, st := range sec.Seats {
			st.CX, st.CY = tx(st.CX, st.CY)
		}
		sec.CalculateBoundingBox()
	}
	for _, st := range l.Unassigned {
		st.CX, st.CY = tx(st.CX, st.CY)
	}
	l.CanvasWidth, l.CanvasHeight = targetWidth, targetHeight
}

// sourceExtent returns the region to map onto the canvas: the declared view
// box widened to every coordinate that falls outside it, or just the
// coordinate extent when no view box was declared.
func (l *Layout) sourceExtent() (ViewBox, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	visit := func(x, y float64) {
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	for _, sec := range l.Sections {
		for _, p := range sec.Points {
			visit(p.X, p.Y)
		}
		for _, st := range sec.Seats {
			visit(st.CX, st.CY)
		}
	}
	for _, st := range l.Unassigned {
		visit(st.CX, st.CY)
	}
	if vb := l.original.viewBox; vb != nil && vb.Width > 0 && vb.Height > 0 {
		visit(vb.X, vb.Y)
		visit(vb.X+vb.Width, vb.Y+vb.Height)
	}
	if math.IsInf(minX, 1) {
		return ViewBox{}, false
	}
	return ViewBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

func (l *Layout) capture() *snapshot {
	snap := &snapshot{seats: map[*Seat]Point{}}
	if l.ViewBox != nil {
		vb := *l.ViewBox
		snap.viewBox = &vb
	}
	for _, sec := range l.Sections {
		snap.sections = append(snap.sections, append([]Point(nil), sec.Points...))
		for _, st := range sec.Seats {
			snap.seats[st] = Point{X: st.CX, Y: st.CY}
		}
	}
	for _, st := range l.Unassigned {
		snap.seats[st] = Point{X: st.CX, Y: st.CY}
	}
	return snap
}

func (l *Layout) restore() {
	for i, sec := range l.Sections {
		if i < len(l.original.sections) {
			copy(sec.Points, l.original.sections[i])
		}
		for _, st := range sec.Seats {
			if p, ok := l.original.seats[st]; ok {
				st.CX, st.CY = p.X, p.Y
			}
		}
		sec.CalculateBoundingBox()
	}
	for _, st := range l.Unassigned {
		if p, ok := l.original.seats[st]; ok {
			st.CX, st.CY = p.X, p.Y
		}
	}
}
