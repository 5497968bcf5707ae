package importer

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var backgroundImage = regexp.MustCompile(`(?i)background-image:\s*url\(['"]?([^'")\s]+)['"]?\)`)

// Import parses seat-map markup (a bare SVG document or an HTML page with
// inline SVG layers) into a Layout. Only a failure to read the input is an
// error; unusable elements are skipped, so a layout with no seats is a valid
// result and callers should check SeatCount before using it.
func Import(markup string) (*Layout, error) {
	return ImportReader(strings.NewReader(markup))
}

// ImportReader is Import for streamed input.
func ImportReader(r io.Reader) (*Layout, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	l := &Layout{}
	areas := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "svg") && attr(n, "data-is-areas-layer") == "1"
	})
	if areas != nil {
		if vb, ok := parseViewBox(attr(areas, "viewBox")); ok {
			l.ViewBox = &vb
		}
	}

	l.Sections = parseSections(doc, areas)
	seats := parseSeats(doc)
	l.Unassigned = assignSeats(l.Sections, seats)
	for _, sec := range l.Sections {
		groupRows(sec, rowTolerance)
	}
	l.BackgroundURL = backgroundURL(doc)
	return l, nil
}

func parseSections(doc, areas *html.Node) []*Section {
	var paths []*html.Node
	if areas != nil {
		paths = findAll(areas, func(n *html.Node) bool {
			return isElement(n, "path") && attr(n, "data-is-area") == "1"
		})
	}
	if len(paths) == 0 {
		paths = findAll(doc, func(n *html.Node) bool {
			if !isElement(n, "path") {
				return false
			}
			d := attr(n, "d")
			return len(d) > 10 && strings.ContainsAny(d, "Mm")
		})
	}

	sections := make([]*Section, 0, len(paths))
	for _, p := range paths {
		idx := len(sections) + 1
		sec := &Section{
			ExternalID: attr(p, "id"),
			Name:       attr(p, "data-name"),
			CategoryID: categoryOf(p),
			Selectable: flag(attr(p, "data-is-selectable"), true),
			Points:     ParsePath(attr(p, "d")),
		}
		if sec.ExternalID == "" {
			sec.ExternalID = "section-" + strconv.Itoa(idx)
		}
		if sec.Name == "" {
			sec.Name = "Section " + strconv.Itoa(idx)
		}
		sec.CalculateBoundingBox()
		sections = append(sections, sec)
	}
	return sections
}

func parseSeats(doc *html.Node) []*Seat {
	isCircle := func(n *html.Node) bool { return isElement(n, "circle") }

	var circles []*html.Node
	for _, layer := range findAll(doc, func(n *html.Node) bool {
		return isElement(n, "svg") && attr(n, "data-is-seats-layer") == "1"
	}) {
		circles = append(circles, findAll(layer, isCircle)...)
	}
	if len(circles) == 0 {
		circles = findAll(doc, func(n *html.Node) bool { return isCircle(n) && hasAttr(n, "data-seat-id") })
	}
	if len(circles) == 0 {
		circles = findAll(doc, func(n *html.Node) bool { return isCircle(n) && hasAttr(n, "cx") && hasAttr(n, "cy") })
	}

	seats := make([]*Seat, 0, len(circles))
	for _, c := range circles {
		cx, errX := strconv.ParseFloat(strings.TrimSpace(attr(c, "cx")), 64)
		cy, errY := strconv.ParseFloat(strings.TrimSpace(attr(c, "cy")), 64)
		if errX != nil || errY != nil {
			continue
		}
		id := attr(c, "data-seat-id")
		if id == "" {
			id = attr(c, "id")
		}
		if id == "" {
			id = "seat-" + strconv.Itoa(len(seats)+1)
		}
		seats = append(seats, &Seat{
			ExternalID: id,
			CX:         cx,
			CY:         cy,
			CategoryID: categoryOf(c),
			Selectable: flag(attr(c, "data-is-selectable"), true),
			Allocated:  flag(attr(c, "data-is-allocated"), false),
		})
	}
	return seats
}

func backgroundURL(doc *html.Node) string {
	if img := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "img") && strings.Contains(attr(n, "class"), "leaflet-image-layer")
	}); img != nil {
		return attr(img, "src")
	}
	if img := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "img") &&
			(strings.Contains(attr(n, "class"), "background") || strings.Contains(attr(n, "id"), "background"))
	}); img != nil {
		return attr(img, "src")
	}
	if el := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.Contains(attr(n, "style"), "background-image")
	}); el != nil {
		if m := backgroundImage.FindStringSubmatch(attr(el, "style")); m != nil {
			return m[1]
		}
	}
	return ""
}

func parseViewBox(s string) (ViewBox, bool) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(f) != 4 {
		return ViewBox{}, false
	}
	var v [4]float64
	for i, part := range f {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return ViewBox{}, false
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return ViewBox{}, false
	}
	return ViewBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}

func categoryOf(n *html.Node) *string {
	for _, key := range []string{"data-category-id", "data-category"} {
		if hasAttr(n, key) {
			v := strings.TrimSpace(attr(n, key))
			if v != "" {
				return &v
			}
		}
	}
	return nil
}

// flag reads a boolean data attribute; only explicit "0"/"false" (or
// "1"/"true") override the default.
func flag(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no":
		return false
	case "1", "true", "yes":
		return true
	}
	return def
}

func isElement(n *html.Node, name string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, name)
}

// attr looks attributes up case-insensitively; the HTML tokenizer lowercases
// names outside of foreign content.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}
