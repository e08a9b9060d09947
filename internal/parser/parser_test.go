package parser

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{"game start", "Got new job: match", GameStart{GameType: "match"}},
		{"game start padded", "  Got new job: selfplay  ", GameStart{GameType: "selfplay"}},
		{"move", "abcd 1 (Q16)", Move{Seed: "abcd", MoveNum: 1, Vertex: "Q16"}},
		{"pass", "abcd 2 (pass)", Move{Seed: "abcd", MoveNum: 2, Vertex: "pass"}},
		{"colored move", "abcd 3 (B D4)", Move{Seed: "abcd", MoveNum: 3, Vertex: "D4"}},
		{"white resign", "f00d 212 (W resign)", Move{Seed: "f00d", MoveNum: 212, Vertex: "resign"}},
		{"game over", "abcd Game has ended.", GameOver{Seed: "abcd"}},
		{"score", "Score: B+R", Score{Text: "B+R"}},
		{"score trailing space", "Score: W+12.5 ", Score{Text: "W+12.5"}},
		{"error", "*ERROR*: something bad", HarnessError{Text: "something bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Classify(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want.Kind(), ev.Kind())
			assert.Equal(t, tt.line, ev.Line())

			switch want := tt.want.(type) {
			case GameStart:
				want.Raw = tt.line
				assert.Equal(t, want, ev)
			case Move:
				want.Raw = tt.line
				assert.Equal(t, want, ev)
			case GameOver:
				want.Raw = tt.line
				assert.Equal(t, want, ev)
			case Score:
				want.Raw = tt.line
				assert.Equal(t, want, ev)
			case HarnessError:
				want.Raw = tt.line
				assert.Equal(t, want, ev)
			}
		})
	}
}

func TestClassify_Misses(t *testing.T) {
	for _, line := range []string{
		"",
		"Got new job:",
		"abcd 1 Q16",
		"abcd x (Q16)",
		"abcd 1 (Q16) trailing",
		"prefix abcd Game has ended.",
		"*ERROR*:",
		"Network: 4f3c...",
		"1 games played, 0.5 moves/s",
	} {
		_, ok := Classify(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		vertex string
		want   goboard.Point
	}{
		{"Q16", goboard.Point{X: 15, Y: 15}},
		{"D4", goboard.Point{X: 3, Y: 3}},
		{"a1", goboard.Point{X: 0, Y: 0}},
		{"H8", goboard.Point{X: 7, Y: 7}},
		{"J9", goboard.Point{X: 8, Y: 8}},
		{"T19", goboard.Point{X: 18, Y: 18}},
		{"pass", goboard.Pass},
		{"PASS", goboard.Pass},
		{"resign", goboard.Pass},
	}

	for _, tt := range tests {
		t.Run(tt.vertex, func(t *testing.T) {
			p, err := ParseMove(tt.vertex)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestParseMove_Columns(t *testing.T) {
	letters := "abcdefghjklmnopqrst"
	for want, c := range letters {
		for _, l := range []string{string(c), strings.ToUpper(string(c))} {
			p, err := ParseMove(l + "1")
			require.NoError(t, err, "letter %s", l)
			assert.Equal(t, want, p.X, "letter %s", l)
		}
	}
}

func TestParseMove_Rejects(t *testing.T) {
	for _, v := range []string{"I5", "U3", "Z1", "A0", "A20", "Q", "16", "pas", "resigned", "?4"} {
		_, err := ParseMove(v)
		assert.ErrorIs(t, err, ErrBadMoveFormat, "vertex %q", v)
	}
}

func TestParseGameType(t *testing.T) {
	assert.Equal(t, goboard.TypeMatch, ParseGameType("match"))
	assert.Equal(t, goboard.TypeSelfplay, ParseGameType("selfplay"))
	assert.Equal(t, goboard.TypeUnknown, ParseGameType("validation"))
}

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(ev Event) {
	r.events = append(r.events, ev)
}

func TestRun(t *testing.T) {
	input := "Got new job: match\r\n" +
		"noise line\n" +
		"abcd 1 (Q16)\n" +
		"abcd 2 (pass)\r\n" +
		"abcd Game has ended.\n" +
		"Score: B+R\n" +
		"abcd 3 (D4)" // no newline, dropped

	rec := &recorder{}
	err := New(nil, nil).Run(context.Background(), strings.NewReader(input), rec)
	require.NoError(t, err)

	kinds := make([]string, len(rec.events))
	for i, ev := range rec.events {
		kinds[i] = ev.Kind()
	}
	assert.Equal(t, []string{"game_start", "move", "move", "game_over", "score"}, kinds)
	assert.Equal(t, "Got new job: match", rec.events[0].Line(), "CR stripped")
	assert.Equal(t, Move{Seed: "abcd", MoveNum: 2, Vertex: "pass", Raw: "abcd 2 (pass)"}, rec.events[2])
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestRun_ReadError(t *testing.T) {
	boom := errors.New("pipe broken")
	err := New(nil, nil).Run(context.Background(), failingReader{boom}, &recorder{})
	assert.ErrorIs(t, err, ErrStream)
	assert.ErrorIs(t, err, boom)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	h := HandlerFunc(func(ev Event) {
		rec.HandleEvent(ev)
		cancel()
	})

	err := New(nil, nil).Run(ctx, strings.NewReader("Got new job: match\nGot new job: selfplay\n"), h)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.events, 1, "cancellation is observed between lines")
}

func TestStart_ClosingStreamEndsLoop(t *testing.T) {
	pr, pw := io.Pipe()
	rec := &recorder{}
	done := New(nil, nil).Start(context.Background(), pr, rec)

	_, err := io.WriteString(pw, "abcd 1 (Q16)\n")
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	require.NoError(t, <-done)
	assert.Len(t, rec.events, 1)
}

func TestStart_ClosedReaderReportsStreamError(t *testing.T) {
	pr, _ := io.Pipe()
	done := New(nil, nil).Start(context.Background(), pr, &recorder{})
	require.NoError(t, pr.Close())

	err := <-done
	assert.ErrorIs(t, err, ErrStream)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
