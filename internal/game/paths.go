package game

import "fmt"

// Path is an ordered run of cells from a boundary start to the opposite boundary
type Path []Coord

// Contains reports whether c lies on the path
func (p Path) Contains(c Coord) bool {
	for _, pc := range p {
		if pc == c {
			return true
		}
	}
	return false
}

// End returns the last cell of the path
func (p Path) End() Coord {
	return p[len(p)-1]
}

type corner uint8

const (
	topLeft corner = iota
	topRight
	bottomLeft
	bottomRight
)

type side uint8

const (
	sideTop side = iota
	sideBottom
	sideLeft
	sideRight
)

// boundary is either a corner or an edge cell; exactly one of the two is meaningful
type boundary struct {
	isCorner bool
	corner   corner
	side     side
}

// classify tags a boundary start. Corners take precedence over edges.
func classify(length int, start Coord) (boundary, error) {
	if length < 2 {
		return boundary{}, &GeometryPreconditionError{Length: length, Start: start, Reason: "board length must be at least 2"}
	}
	last := length - 1
	if start.Row < 0 || start.Row > last || start.Col < 0 || start.Col > last {
		return boundary{}, &GeometryPreconditionError{Length: length, Start: start, Reason: "start is off the board"}
	}

	top, bottom := start.Row == 0, start.Row == last
	left, right := start.Col == 0, start.Col == last
	switch {
	case top && left:
		return boundary{isCorner: true, corner: topLeft}, nil
	case top && right:
		return boundary{isCorner: true, corner: topRight}, nil
	case bottom && left:
		return boundary{isCorner: true, corner: bottomLeft}, nil
	case bottom && right:
		return boundary{isCorner: true, corner: bottomRight}, nil
	case top:
		return boundary{side: sideTop}, nil
	case bottom:
		return boundary{side: sideBottom}, nil
	case left:
		return boundary{side: sideLeft}, nil
	case right:
		return boundary{side: sideRight}, nil
	}
	return boundary{}, &GeometryPreconditionError{Length: length, Start: start, Reason: "start is not on the boundary"}
}

// GeneratePaths returns the candidate paths from a boundary start on an empty
// length x length board. Every path holds exactly length cells and begins at start.
func GeneratePaths(length int, start Coord) ([]Path, error) {
	b, err := classify(length, start)
	if err != nil {
		return nil, err
	}
	if b.isCorner {
		return cornerPaths(length, b.corner), nil
	}
	return edgePaths(length, start, b.side), nil
}

// cornerPaths yields the row, the column and the full diagonal, each read away from the corner
func cornerPaths(length int, c corner) []Path {
	last := length - 1
	var r0, c0, dr, dc int
	switch c {
	case topLeft:
		r0, c0, dr, dc = 0, 0, 1, 1
	case topRight:
		r0, c0, dr, dc = 0, last, 1, -1
	case bottomLeft:
		r0, c0, dr, dc = last, 0, -1, 1
	case bottomRight:
		r0, c0, dr, dc = last, last, -1, -1
	}

	row := make(Path, length)
	col := make(Path, length)
	diag := make(Path, length)
	for i := 0; i < length; i++ {
		row[i] = Coord{Row: r0, Col: c0 + i*dc}
		col[i] = Coord{Row: r0 + i*dr, Col: c0}
		diag[i] = Coord{Row: r0 + i*dr, Col: c0 + i*dc}
	}
	return []Path{row, col, diag}
}

// edgePaths yields the straight line across, then the diagonals toward the
// lower and higher index sides. A diagonal that meets a side edge runs along it.
func edgePaths(length int, start Coord, s side) []Path {
	last := length - 1

	// step i advances across the board, lateral is the position along the start edge
	var at func(i, lateral int) Coord
	var origin int
	switch s {
	case sideTop:
		origin = start.Col
		at = func(i, lateral int) Coord { return Coord{Row: i, Col: lateral} }
	case sideBottom:
		origin = start.Col
		at = func(i, lateral int) Coord { return Coord{Row: last - i, Col: lateral} }
	case sideLeft:
		origin = start.Row
		at = func(i, lateral int) Coord { return Coord{Row: lateral, Col: i} }
	case sideRight:
		origin = start.Row
		at = func(i, lateral int) Coord { return Coord{Row: lateral, Col: last - i} }
	}

	straight := make(Path, length)
	low := make(Path, length)
	high := make(Path, length)
	for i := 0; i < length; i++ {
		straight[i] = at(i, origin)
		low[i] = at(i, max(origin-i, 0))
		high[i] = at(i, min(origin+i, last))
	}
	return []Path{straight, low, high}
}

// FilterFree drops every path with no free cell, keeping the order of the rest
func FilterFree(paths []Path, free func(Coord) bool) []Path {
	kept := make([]Path, 0, len(paths))
	for _, p := range paths {
		for _, c := range p {
			if free(c) {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}

// Paths returns the candidate paths from start that still have a free cell.
// An empty result means there is no legal move from start.
func (b *Board) Paths(start Coord) ([]Path, error) {
	paths, err := GeneratePaths(b.length, start)
	if err != nil {
		return nil, err
	}
	return FilterFree(paths, b.IsFree), nil
}

// GeometryPreconditionError reports a path query that has no defined geometry
type GeometryPreconditionError struct {
	Length int
	Start  Coord
	Reason string
}

func (e *GeometryPreconditionError) Error() string {
	return fmt.Sprintf("paths from %s on a board of length %d: %s", e.Start, e.Length, e.Reason)
}
