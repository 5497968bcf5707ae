package importer

import (
	"regexp"
	"strconv"
)

// pathToken matches, in order of preference, a command letter, a number, or
// any other single non-separator character (which is then skipped).
var pathToken = regexp.MustCompile(`([MmLlHhVvZzCcSsQqTtAa])|([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)|([^\s,])`)

// arity is the number of numeric arguments each command consumes.
var arity = map[byte]int{
	'M': 2, 'L': 2, 'T': 2,
	'H': 1, 'V': 1,
	'C': 6,
	'S': 4, 'Q': 4,
	'A': 7,
	'Z': 0,
}

// ParsePath converts an SVG path "d" attribute into an ordered vertex list.
// Curves and arcs contribute their end point only. Unknown characters,
// malformed numbers and incomplete argument groups are dropped without
// aborting the rest of the path.
func ParsePath(d string) []Point {
	var (
		points         []Point
		cmd            byte
		relative       bool
		args           []float64
		curX, curY     float64
		startX, startY float64
	)

	emit := func() {
		x, y := curX, curY
		switch cmd {
		case 'M', 'L', 'T':
			x, y = args[0], args[1]
			if relative {
				x, y = curX+x, curY+y
			}
		case 'H':
			x = args[0]
			if relative {
				x = curX + x
			}
		case 'V':
			y = args[0]
			if relative {
				y = curY + y
			}
		case 'C':
			x, y = args[4], args[5]
			if relative {
				x, y = curX+x, curY+y
			}
		case 'S', 'Q':
			x, y = args[2], args[3]
			if relative {
				x, y = curX+x, curY+y
			}
		case 'A':
			x, y = args[5], args[6]
			if relative {
				x, y = curX+x, curY+y
			}
		}
		curX, curY = x, y
		if cmd == 'M' {
			startX, startY = x, y
			// further coordinate pairs after a moveto are implicit linetos
			cmd = 'L'
		}
		points = append(points, Point{X: x, Y: y})
	}

	for _, m := range pathToken.FindAllStringSubmatch(d, -1) {
		switch {
		case m[1] != "":
			c := m[1][0]
			relative = c >= 'a' && c <= 'z'
			if relative {
				c -= 'a' - 'A'
			}
			cmd = c
			args = args[:0]
			if cmd == 'Z' {
				curX, curY = startX, startY
			}
		case m[2] != "":
			if cmd == 0 || cmd == 'Z' {
				continue
			}
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			args = append(args, v)
			if len(args) == arity[cmd] {
				emit()
				args = args[:0]
			}
		default:
			// stray character: drop any half-read argument group
			args = args[:0]
		}
	}
	return points
}
