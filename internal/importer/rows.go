package importer

import (
	"math"
	"sort"
	"strconv"
)

// rowTolerance is the vertical distance within which seats share a row.
const rowTolerance = 15.0

// assignSeats places each seat into a section: first by matching category,
// then by point-in-polygon, then into the only section if there is exactly
// one. Seats that fit nowhere are returned.
func assignSeats(sections []*Section, seats []*Seat) []*Seat {
	var unassigned []*Seat
	for _, st := range seats {
		target := sectionFor(sections, st)
		if target == nil {
			unassigned = append(unassigned, st)
			continue
		}
		st.SectionID = target.ExternalID
		target.Seats = append(target.Seats, st)
	}
	return unassigned
}

func sectionFor(sections []*Section, st *Seat) *Section {
	if st.CategoryID != nil {
		for _, sec := range sections {
			if sec.CategoryID != nil && *sec.CategoryID == *st.CategoryID {
				return sec
			}
		}
	}
	for _, sec := range sections {
		if pointInPolygon(st.CX, st.CY, sec.Points) {
			return sec
		}
	}
	if len(sections) == 1 {
		return sections[0]
	}
	return nil
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(x, y float64, poly []Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// groupRows orders a section's seats into rows by Y proximity and labels
// them: rows 1..n top to bottom, seats 1..m left to right within a row.
func groupRows(sec *Section, tolerance float64) {
	if len(sec.Seats) == 0 {
		return
	}
	seats := append([]*Seat(nil), sec.Seats...)
	sort.SliceStable(seats, func(i, j int) bool { return seats[i].CY < seats[j].CY })

	var (
		ordered []*Seat
		row     []*Seat
		lastY   float64
		rowNum  = 1
	)
	flush := func() {
		sort.SliceStable(row, func(i, j int) bool { return row[i].CX < row[j].CX })
		for i, st := range row {
			st.RowLabel = strconv.Itoa(rowNum)
			st.SeatLabel = strconv.Itoa(i + 1)
		}
		ordered = append(ordered, row...)
		rowNum++
	}
	for _, st := range seats {
		switch {
		case len(row) == 0:
			row = append(row, st)
			lastY = st.CY
		case math.Abs(st.CY-lastY) <= tolerance:
			row = append(row, st)
			lastY = (lastY + st.CY) / 2
		default:
			flush()
			row = []*Seat{st}
			lastY = st.CY
		}
	}
	flush()
	sec.Seats = ordered
}
