package goboard

import "fmt"

// Move is a node of the game record tree. The root is a sentinel without a
// point or color; the first child of every node is the main line.
type Move struct {
	Point    Point
	Color    Color
	Parent   *Move
	Children []*Move
}

// NewRootMove returns the sentinel root of an empty record.
func NewRootMove() *Move {
	return &Move{Point: Pass, Color: Empty}
}

// IsRoot reports whether m is the sentinel.
func (m *Move) IsRoot() bool {
	return m.Parent == nil
}

// IsPass reports whether m is a pass.
func (m *Move) IsPass() bool {
	return !m.IsRoot() && m.Point.IsPass()
}

// AddChild appends a move under m and returns it.
func (m *Move) AddChild(p Point, c Color) *Move {
	child := &Move{Point: p, Color: c, Parent: m}
	m.Children = append(m.Children, child)
	return child
}

// MainLine walks the leftmost spine below m.
func (m *Move) MainLine() []*Move {
	var line []*Move
	for cur := m; len(cur.Children) > 0; {
		cur = cur.Children[0]
		line = append(line, cur)
	}
	return line
}

func (m *Move) String() string {
	if m.IsRoot() {
		return "root"
	}
	return fmt.Sprintf("%s %s", m.Color, m.Point)
}
