package goboard

// Type is the kind of game the harness is playing.
type Type int

const (
	TypeUnknown Type = iota
	TypeMatch
	TypeSelfplay
)

// ParseType maps a harness job name to a Type. Unrecognized names map to
// TypeUnknown.
func ParseType(s string) Type {
	switch s {
	case "match":
		return TypeMatch
	case "selfplay":
		return TypeSelfplay
	default:
		return TypeUnknown
	}
}

func (t Type) String() string {
	switch t {
	case TypeMatch:
		return "match"
	case TypeSelfplay:
		return "selfplay"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Option configures a Board.
type Option func(*Board)

// WithPositionalSuperko makes the rules reject any move recreating an earlier
// position, not only single-stone ko recaptures.
func WithPositionalSuperko() Option {
	return func(b *Board) {
		b.rules.positionalSuperko = true
	}
}

// WithSeed records the harness seed of the game.
func WithSeed(seed string) Option {
	return func(b *Board) {
		b.seed = seed
	}
}

// Board is the live state of one game.
type Board struct {
	typ      Type
	seed     string
	root     *Move
	last     *Move
	pos      Position
	history  []Position
	toMove   Color
	moveNum  int
	gameOver bool
	score    string
	rules    *Rules
}

// NewBoard creates an empty board with Black to play.
func NewBoard(t Type, opts ...Option) *Board {
	root := NewRootMove()
	b := &Board{
		typ:     t,
		root:    root,
		last:    root,
		history: []Position{{}},
		toMove:  Black,
	}
	b.rules = NewRules(b, false)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DoMove plays the side to move at (x, y). (PassCoord, PassCoord) is a pass.
// An illegal move leaves the board untouched and returns *IllegalMoveError.
func (b *Board) DoMove(x, y int) error {
	p := Point{X: x, Y: y}
	color := b.toMove

	next := b.pos
	if !p.IsPass() {
		if reason := b.rules.check(p); reason != "" {
			return &IllegalMoveError{
				Proposed: Move{Point: p, Color: color},
				Position: b.pos,
				Reason:   reason,
			}
		}
		next, _ = placeAndCapture(b.pos, p, color)
	} else {
		p = Pass
	}

	b.last = b.last.AddChild(p, color)
	b.pos = next
	b.history = append(b.history, next)
	b.toMove = color.Opponent()
	b.moveNum++
	return nil
}

// Rules returns the engine judging moves on this board.
func (b *Board) Rules() *Rules {
	return b.rules
}

// IsLegalMove is shorthand for b.Rules().IsLegalMove(p).
func (b *Board) IsLegalMove(p Point) bool {
	return b.rules.IsLegalMove(p)
}

// SetMoveNum overrides the move counter with the number reported by the harness.
func (b *Board) SetMoveNum(n int) {
	b.moveNum = n
}

func (b *Board) MoveNum() int {
	return b.moveNum
}

func (b *Board) Type() Type {
	return b.typ
}

func (b *Board) Seed() string {
	return b.seed
}

// CurrPos returns a copy of the current position.
func (b *Board) CurrPos() Position {
	return b.pos
}

// ToMove returns the side that plays next.
func (b *Board) ToMove() Color {
	return b.toMove
}

// LastMove returns the most recent move, or nil before the first one.
func (b *Board) LastMove() *Move {
	if b.last.IsRoot() {
		return nil
	}
	return b.last
}

// MainLine returns the played moves in order.
func (b *Board) MainLine() []*Move {
	return b.root.MainLine()
}

// History returns the positions of the game; index i is the position after
// move i and index 0 is the empty board.
func (b *Board) History() []Position {
	out := make([]Position, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Board) IsGameOver() bool {
	return b.gameOver
}

// SetGameOver marks the game as finished.
func (b *Board) SetGameOver() {
	b.gameOver = true
}

func (b *Board) Score() string {
	return b.score
}

func (b *Board) SetScore(score string) {
	b.score = score
}
