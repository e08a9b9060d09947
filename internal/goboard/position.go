package goboard

import (
	"fmt"
	"strings"
)

// Position is an immutable snapshot of the stones on the board. It is a value
// type: copies are independent and == compares stone by stone.
type Position struct {
	stones [Size * Size]Color
}

// ColorAt returns the stone at p, or Empty for points off the board.
func (pos Position) ColorAt(p Point) Color {
	if !p.OnBoard() {
		return Empty
	}
	return pos.stones[p.index()]
}

// Equals reports stone-by-stone identity.
func (pos Position) Equals(other Position) bool {
	return pos == other
}

// StoneCount returns the number of stones of color c.
func (pos Position) StoneCount(c Color) int {
	n := 0
	for _, s := range pos.stones {
		if s == c {
			n++
		}
	}
	return n
}

// Grid returns the stones as rows indexed [y][x].
func (pos Position) Grid() [][]Color {
	grid := make([][]Color, Size)
	for y := 0; y < Size; y++ {
		grid[y] = make([]Color, Size)
		copy(grid[y], pos.stones[y*Size:(y+1)*Size])
	}
	return grid
}

// Rows renders each row as X, O and . characters, row 19 first.
func (pos Position) Rows() []string {
	rows := make([]string, 0, Size)
	row := make([]byte, Size)
	for y := Size - 1; y >= 0; y-- {
		for x := 0; x < Size; x++ {
			row[x] = pos.stones[y*Size+x].symbol()
		}
		rows = append(rows, string(row))
	}
	return rows
}

func (pos Position) with(p Point, c Color) Position {
	pos.stones[p.index()] = c
	return pos
}

// String draws the position with row 19 on top. X is black, O is white.
func (pos Position) String() string {
	var sb strings.Builder
	sb.WriteString("   ")
	for x := 0; x < Size; x++ {
		sb.WriteByte(' ')
		sb.WriteByte(columnLetter(x))
	}
	sb.WriteByte('\n')
	for y := Size - 1; y >= 0; y-- {
		fmt.Fprintf(&sb, "%2d ", y+1)
		for x := 0; x < Size; x++ {
			sb.WriteByte(' ')
			sb.WriteByte(pos.stones[y*Size+x].symbol())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MarkablePosition is a Position with a visited flag per point. The marks are
// scratch space for flood fills and are cleared at the start of every query.
type MarkablePosition struct {
	Position
	marks [Size * Size]bool
}

// NewMarkablePosition wraps pos with a clean mark plane.
func NewMarkablePosition(pos Position) *MarkablePosition {
	return &MarkablePosition{Position: pos}
}

// ClearMarks resets every visited flag.
func (m *MarkablePosition) ClearMarks() {
	m.marks = [Size * Size]bool{}
}

// CountLiberties returns the number of distinct empty points adjacent to the
// group containing p. An empty p has no group and reports 0.
func (m *MarkablePosition) CountLiberties(p Point) int {
	m.ClearMarks()
	color := m.ColorAt(p)
	if color == Empty {
		return 0
	}

	libs := 0
	stack := []Point{p}
	m.marks[p.index()] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range cur.Neighbors() {
			i := n.index()
			if m.marks[i] {
				continue
			}
			switch m.stones[i] {
			case Empty:
				m.marks[i] = true
				libs++
			case color:
				m.marks[i] = true
				stack = append(stack, n)
			}
		}
	}
	return libs
}

// Group returns every stone connected to p with the same color.
func (m *MarkablePosition) Group(p Point) []Point {
	m.ClearMarks()
	color := m.ColorAt(p)
	if color == Empty {
		return nil
	}

	group := []Point{p}
	m.marks[p.index()] = true
	for i := 0; i < len(group); i++ {
		for _, n := range group[i].Neighbors() {
			if m.marks[n.index()] || m.stones[n.index()] != color {
				continue
			}
			m.marks[n.index()] = true
			group = append(group, n)
		}
	}
	return group
}

// RemoveStoneAt clears a single point.
func (m *MarkablePosition) RemoveStoneAt(p Point) {
	m.stones[p.index()] = Empty
}

// placeAndCapture builds the trial position for c playing at p and removes
// every adjacent opposing group left without liberties. It returns the
// resulting position and the number of stones removed.
func placeAndCapture(pos Position, p Point, c Color) (Position, int) {
	trial := NewMarkablePosition(pos.with(p, c))
	captured := 0
	for _, n := range p.Neighbors() {
		if trial.ColorAt(n) != c.Opponent() {
			continue
		}
		if trial.CountLiberties(n) != 0 {
			continue
		}
		for _, s := range trial.Group(n) {
			trial.RemoveStoneAt(s)
			captured++
		}
	}
	return trial.Position, captured
}
