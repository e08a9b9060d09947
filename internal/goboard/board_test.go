package goboard

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, b *Board, points ...Point) {
	t.Helper()
	for _, p := range points {
		require.NoError(t, b.DoMove(p.X, p.Y), "move %s", p)
	}
}

func TestNewBoard(t *testing.T) {
	b := NewBoard(TypeMatch, WithSeed("abcd"))

	assert.Equal(t, TypeMatch, b.Type())
	assert.Equal(t, "abcd", b.Seed())
	assert.Equal(t, 0, b.MoveNum())
	assert.False(t, b.IsGameOver())
	assert.Equal(t, Black, b.ToMove())
	assert.Equal(t, Position{}, b.CurrPos())
	assert.Nil(t, b.LastMove())
	assert.Len(t, b.History(), 1)
}

func TestDoMove_AlternatesColors(t *testing.T) {
	b := NewBoard(TypeSelfplay)
	play(t, b, Point{3, 3}, Point{15, 15}, Pass, Point{3, 15})

	line := b.MainLine()
	require.Len(t, line, 4)
	assert.Equal(t, []Color{Black, White, Black, White},
		[]Color{line[0].Color, line[1].Color, line[2].Color, line[3].Color})
	assert.True(t, line[2].IsPass())
	assert.Equal(t, 4, b.MoveNum())
	assert.Equal(t, Black, b.ToMove())
	assert.Equal(t, Black, b.CurrPos().ColorAt(Point{3, 3}))
	assert.Equal(t, White, b.CurrPos().ColorAt(Point{3, 15}))
}

func TestDoMove_HistoryMatchesEveryMove(t *testing.T) {
	b := NewBoard(TypeMatch)
	moves := []Point{{3, 3}, {4, 3}, Pass, {4, 4}}
	play(t, b, moves...)

	history := b.History()
	require.Len(t, history, len(moves)+1)
	assert.Equal(t, Position{}, history[0])
	assert.Equal(t, Black, history[1].ColorAt(Point{3, 3}))
	assert.Equal(t, history[2], history[3], "a pass repeats the position")
	assert.Equal(t, b.CurrPos(), history[len(history)-1])
}

func TestDoMove_Captures(t *testing.T) {
	b := NewBoard(TypeMatch)
	// White stone at (1,0) is surrounded on the edge.
	play(t, b,
		Point{0, 0}, Point{1, 0},
		Point{1, 1}, Pass,
		Point{2, 0},
	)

	pos := b.CurrPos()
	assert.Equal(t, Empty, pos.ColorAt(Point{1, 0}))
	assert.Equal(t, 0, pos.StoneCount(White))
	assert.Equal(t, 3, pos.StoneCount(Black))
}

func TestDoMove_CapturesWholeGroup(t *testing.T) {
	b := NewBoard(TypeMatch)
	play(t, b,
		Point{1, 1}, Point{0, 1},
		Point{0, 2}, Point{1, 0},
		Point{2, 0}, Pass,
		Point{0, 0},
	)

	pos := b.CurrPos()
	assert.Equal(t, 0, pos.StoneCount(White), "both white stones captured")
	assert.Equal(t, Black, pos.ColorAt(Point{0, 0}))
}

func TestDoMove_SelfCaptureRejected(t *testing.T) {
	b := NewBoard(TypeMatch)
	play(t, b,
		Point{10, 10}, Point{1, 0},
		Point{10, 11}, Point{0, 1},
	)

	before := b.CurrPos()
	assert.True(t, b.Rules().IsSelfCapture(Point{0, 0}))
	assert.False(t, b.IsLegalMove(Point{0, 0}))

	err := b.DoMove(0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalMove))

	var illegal *IllegalMoveError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, Point{0, 0}, illegal.Proposed.Point)
	assert.Equal(t, Black, illegal.Proposed.Color)
	assert.Equal(t, before, illegal.Position)
	assert.Equal(t, before, b.CurrPos(), "board untouched")
	assert.Equal(t, 4, b.MoveNum())
}

func TestDoMove_OccupiedRejected(t *testing.T) {
	b := NewBoard(TypeMatch)
	play(t, b, Point{3, 3})

	assert.False(t, b.Rules().IsEmpty(Point{3, 3}))
	assert.ErrorIs(t, b.DoMove(3, 3), ErrIllegalMove)
}

// koBoard builds a ko where White has just captured at (3,4) and Black could
// immediately retake at (4,4).
func koBoard(t *testing.T, opts ...Option) *Board {
	b := NewBoard(TypeMatch, opts...)
	play(t, b,
		Point{2, 4}, Point{5, 4},
		Point{3, 5}, Point{4, 5},
		Point{3, 3}, Point{4, 3},
		Point{4, 4}, Point{3, 4},
	)
	require.Equal(t, Empty, b.CurrPos().ColorAt(Point{4, 4}), "white captured the black stone")
	return b
}

func TestRules_Ko(t *testing.T) {
	b := koBoard(t)

	assert.True(t, b.Rules().IsKo(Point{4, 4}))
	assert.False(t, b.IsLegalMove(Point{4, 4}))
	assert.ErrorIs(t, b.DoMove(4, 4), ErrIllegalMove)

	// After an exchange elsewhere the retake no longer repeats a position.
	play(t, b, Point{10, 10}, Point{10, 12})
	assert.False(t, b.Rules().IsKo(Point{4, 4}))
	require.NoError(t, b.DoMove(4, 4))
	assert.Equal(t, Empty, b.CurrPos().ColorAt(Point{3, 4}))
}

func TestRules_PassAlwaysLegal(t *testing.T) {
	b := koBoard(t)
	assert.True(t, b.IsLegalMove(Pass))
	require.NoError(t, b.DoMove(PassCoord, PassCoord))
	require.NoError(t, b.DoMove(PassCoord, PassCoord))
	assert.False(t, b.IsGameOver(), "consecutive passes do not end the game")
}

func TestRules_PositionalSuperko(t *testing.T) {
	// Without superko a non-capturing move is never a ko.
	b := NewBoard(TypeMatch)
	play(t, b, Point{3, 3})
	assert.False(t, b.Rules().IsKo(Point{4, 4}))

	b = koBoard(t, WithPositionalSuperko())
	assert.True(t, b.Rules().IsKo(Point{4, 4}))
}

// cornerRecapture leaves black to retake the corner by capturing the two
// white stones at C1 and B1, which recreates the position after move 7.
var cornerRecapture = []Point{
	{1, 1}, {0, 1},
	{2, 1}, Pass,
	{3, 0}, Pass,
	{0, 0}, {2, 0},
	Pass, {1, 0},
}

func TestRules_MultiStoneRecapture(t *testing.T) {
	b := NewBoard(TypeMatch)
	play(t, b, cornerRecapture...)
	require.Equal(t, Empty, b.CurrPos().ColorAt(Point{0, 0}), "white captured the corner stone")

	assert.False(t, b.Rules().IsKo(Point{0, 0}), "two stones are captured, so the ko rule does not apply")
	require.NoError(t, b.DoMove(0, 0))
	assert.Equal(t, b.History()[7], b.CurrPos())
	assert.Equal(t, Empty, b.CurrPos().ColorAt(Point{1, 0}))
	assert.Equal(t, Empty, b.CurrPos().ColorAt(Point{2, 0}))

	super := NewBoard(TypeMatch, WithPositionalSuperko())
	play(t, super, cornerRecapture...)
	assert.True(t, super.Rules().IsKo(Point{0, 0}))
	assert.ErrorIs(t, super.DoMove(0, 0), ErrIllegalMove)
	assert.Equal(t, 10, super.MoveNum(), "the rejected retake is not recorded")
}

func TestRules_NonCapturingRepetition(t *testing.T) {
	b := NewBoard(TypeMatch)
	play(t, b, cornerRecapture...)
	play(t, b, Point{0, 0})

	// White replaying C1 captures nothing and repeats the position after move 8.
	p := Point{2, 0}
	assert.True(t, b.IsLegalMove(p))
	assert.False(t, b.Rules().IsKo(p))
	assert.True(t, NewRules(b, true).IsKo(p))
	assert.False(t, NewRules(b, true).IsLegalMove(p))

	require.NoError(t, b.DoMove(p.X, p.Y))
	assert.Equal(t, b.History()[8], b.CurrPos())
}

func TestRules_SelfCaptureIffNoLibertiesAndNoCapture(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewBoard(TypeSelfplay)

	for i := 0; i < 400; i++ {
		p := Point{X: rng.Intn(Size), Y: rng.Intn(Size)}
		if b.Rules().IsEmpty(p) {
			trial := NewMarkablePosition(b.CurrPos().with(p, b.ToMove()))
			ownLibs := trial.CountLiberties(p)
			_, captured := placeAndCapture(b.CurrPos(), p, b.ToMove())
			assert.Equal(t, ownLibs == 0 && captured == 0, b.Rules().IsSelfCapture(p), "point %s", p)
		}
		if b.IsLegalMove(p) {
			require.NoError(t, b.DoMove(p.X, p.Y))
		}
	}
}

func TestDoMove_NoGroupWithoutLiberties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := NewBoard(TypeSelfplay)

	for i := 0; i < 600; i++ {
		p := Point{X: rng.Intn(Size), Y: rng.Intn(Size)}
		if !b.IsLegalMove(p) {
			continue
		}
		require.NoError(t, b.DoMove(p.X, p.Y))

		m := NewMarkablePosition(b.CurrPos())
		for idx := 0; idx < Size*Size; idx++ {
			q := pointAt(idx)
			if m.ColorAt(q) == Empty {
				continue
			}
			require.NotZero(t, m.CountLiberties(q), "group at %s after move %d", q, b.MoveNum())
		}
	}
}

func TestDoMove_ReplayIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	first := NewBoard(TypeMatch)
	var played []Point
	for i := 0; i < 300; i++ {
		p := Point{X: rng.Intn(Size), Y: rng.Intn(Size)}
		if first.IsLegalMove(p) {
			require.NoError(t, first.DoMove(p.X, p.Y))
			played = append(played, p)
		}
	}

	second := NewBoard(TypeMatch)
	play(t, second, played...)
	assert.Equal(t, first.CurrPos(), second.CurrPos())
}

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeMatch, ParseType("match"))
	assert.Equal(t, TypeSelfplay, ParseType("selfplay"))
	assert.Equal(t, TypeUnknown, ParseType("validation"))
	assert.Equal(t, "selfplay", TypeSelfplay.String())
}
