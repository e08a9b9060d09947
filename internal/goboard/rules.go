package goboard

// Rules decides legality of a candidate point on a board's current position.
// By default it enforces occupancy, self-capture and the single-stone ko rule
// against every earlier position of the game. With positional superko enabled
// any move recreating an earlier position is rejected.
type Rules struct {
	board             *Board
	positionalSuperko bool
}

// NewRules binds a rules engine to b.
func NewRules(b *Board, positionalSuperko bool) *Rules {
	return &Rules{board: b, positionalSuperko: positionalSuperko}
}

// IsLegalMove reports whether the side to move may play p. Pass is always legal.
func (r *Rules) IsLegalMove(p Point) bool {
	return r.check(p) == ""
}

// check returns the reason p is illegal, or "" when it is legal.
func (r *Rules) check(p Point) string {
	if p.IsPass() {
		return ""
	}
	switch {
	case !p.OnBoard():
		return "off board"
	case !r.IsEmpty(p):
		return "point occupied"
	case r.IsSelfCapture(p):
		return "self-capture"
	case r.IsKo(p):
		return "ko"
	}
	return ""
}

// IsEmpty reports whether the current position has no stone at p.
func (r *Rules) IsEmpty(p Point) bool {
	return p.OnBoard() && r.board.pos.ColorAt(p) == Empty
}

// IsSelfCapture reports whether placing a stone at p leaves its own group
// without liberties while capturing nothing.
func (r *Rules) IsSelfCapture(p Point) bool {
	if !p.OnBoard() {
		return false
	}
	color := r.board.toMove
	trial := NewMarkablePosition(r.board.pos.with(p, color))

	for _, n := range p.Neighbors() {
		if trial.ColorAt(n) == color.Opponent() && trial.CountLiberties(n) == 0 {
			return false
		}
	}
	return trial.CountLiberties(p) == 0
}

// IsKo reports whether playing p captures exactly one stone and reproduces a
// position already seen in this game. Under positional superko the capture
// count does not matter.
func (r *Rules) IsKo(p Point) bool {
	if !p.OnBoard() {
		return false
	}
	next, captured := placeAndCapture(r.board.pos, p, r.board.toMove)
	if captured != 1 && !r.positionalSuperko {
		return false
	}
	for _, seen := range r.board.history {
		if seen == next {
			return true
		}
	}
	return false
}
