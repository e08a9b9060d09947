package goboard

import "fmt"

// Size is the edge length of every board the watcher tracks.
const Size = 19

// PassCoord is the sentinel coordinate used for both axes of a pass.
const PassCoord = -1

// Point is a 0-based intersection. Pass is represented by (-1, -1).
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pass is the point recorded for a pass (and for a resignation).
var Pass = Point{X: PassCoord, Y: PassCoord}

// IsPass reports whether p is the pass sentinel.
func (p Point) IsPass() bool {
	return p.X == PassCoord && p.Y == PassCoord
}

// OnBoard reports whether p lies on a Size x Size grid.
func (p Point) OnBoard() bool {
	return p.X >= 0 && p.X < Size && p.Y >= 0 && p.Y < Size
}

// Neighbors returns the orthogonal neighbours of p that are on the board.
func (p Point) Neighbors() []Point {
	candidates := [4]Point{
		{X: p.X, Y: p.Y + 1},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X - 1, Y: p.Y},
	}
	out := make([]Point, 0, 4)
	for _, n := range candidates {
		if n.OnBoard() {
			out = append(out, n)
		}
	}
	return out
}

// String renders p in harness notation (column letters skip I, rows from 1).
func (p Point) String() string {
	if p.IsPass() {
		return "pass"
	}
	if !p.OnBoard() {
		return fmt.Sprintf("(%d,%d)", p.X, p.Y)
	}
	return fmt.Sprintf("%c%d", columnLetter(p.X), p.Y+1)
}

func columnLetter(x int) byte {
	if x >= 8 {
		return byte('A' + x + 1)
	}
	return byte('A' + x)
}

func (p Point) index() int {
	return p.Y*Size + p.X
}

func pointAt(i int) Point {
	return Point{X: i % Size, Y: i / Size}
}

// Color is the content of an intersection or the side of a move.
type Color uint8

const (
	Empty Color = iota
	Black
	White
)

// Opponent returns the other side. Empty has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

func (c Color) String() string {
	switch c {
	case Black:
		return "B"
	case White:
		return "W"
	default:
		return "."
	}
}

func (c Color) symbol() byte {
	switch c {
	case Black:
		return 'X'
	case White:
		return 'O'
	default:
		return '.'
	}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
