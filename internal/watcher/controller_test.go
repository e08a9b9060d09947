package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/dmmcquay/leelawatcher/internal/archive"
	"github.com/dmmcquay/leelawatcher/internal/goboard"
	"github.com/dmmcquay/leelawatcher/internal/parser"
	"github.com/dmmcquay/leelawatcher/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	messages []string
	progress []bool
}

func (l *recordingListener) OnMessage(msg string)       { l.messages = append(l.messages, msg) }
func (l *recordingListener) OnProgress(inProgress bool) { l.progress = append(l.progress, inProgress) }

func (l *recordingListener) hasPrefix(prefix string) bool {
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func feed(t *testing.T, c *Controller, lines ...string) {
	t.Helper()
	input := strings.Join(lines, "\n") + "\n"
	require.NoError(t, parser.New(nil, nil).Run(context.Background(), strings.NewReader(input), c))
}

func newController(t *testing.T, sink registry.Sink) (*Controller, *registry.Registry, *recordingListener) {
	t.Helper()
	reg := registry.New()
	l := &recordingListener{}
	return New(reg, sink, WithListener(l)), reg, l
}

func TestGameEndAndSave(t *testing.T) {
	dir := t.TempDir()
	c, reg, l := newController(t, &registry.FileSink{Dir: dir})

	feed(t, c,
		"Got new job: match",
		"abcd 1 (Q16)",
		"abcd Game has ended.",
	)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "held for the score line")

	c.Flush()
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}_\d{2}_\d{2}\.\d{3}Z_abcd\.sgf$`), entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "(;FF[4]GM[1]SZ[19];B[pp])", string(data))

	_, finished := reg.Counts()
	assert.Zero(t, finished)
	assert.False(t, c.InProgress())
	assert.Equal(t, []bool{true, false}, l.progress)
	assert.Contains(t, l.messages, "Playing match starting at 1 game: abcd")
}

func TestNoSaveWhileInProgress(t *testing.T) {
	var saved []string
	sink := registry.SinkFunc(func(e *registry.Entry) error {
		saved = append(saved, e.Seed)
		return nil
	})
	c, reg, _ := newController(t, sink)

	feed(t, c,
		"Got new job: selfplay",
		"aaaa 1 (D4)",
		"bbbb 1 (Q16)",
		"aaaa Game has ended.",
	)
	assert.Empty(t, saved, "game over ends progress, the save waits for the next line")

	// A move restarts progress and flushes aaaa; the next game over takes
	// only the new game.
	feed(t, c,
		"bbbb 2 (D4)",
		"bbbb Game has ended.",
	)
	assert.Equal(t, []string{"aaaa"}, saved)

	// Without an intervening move, a second game over finishes the board but
	// does not take it for saving.
	feed(t, c,
		"Got new job: selfplay",
		"cccc 1 (C3)",
		"dddd 1 (C3)",
		"cccc Game has ended.",
		"dddd Game has ended.",
	)
	assert.Equal(t, []string{"aaaa", "bbbb"}, saved)

	c.Flush()
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc"}, saved)
	_, finished := reg.Counts()
	assert.Equal(t, 1, finished, "dddd waits for the next progress edge")

	c.Flush()
	assert.Len(t, saved, 3, "flushing twice saves nothing new")
}

func TestErrorReset(t *testing.T) {
	var saved int
	c, reg, l := newController(t, registry.SinkFunc(func(*registry.Entry) error { saved++; return nil }))

	feed(t, c,
		"Got new job: selfplay",
		"aaaa 1 (D4)",
		"bbbb 1 (Q16)",
		"*ERROR*: something",
	)

	active, finished := reg.Counts()
	assert.Zero(t, active)
	assert.Zero(t, finished)
	assert.Nil(t, reg.Focus())
	assert.Zero(t, saved)
	assert.False(t, c.InProgress())
	assert.Contains(t, l.messages, "Harness error: something")
}

func TestIllegalMoveContinues(t *testing.T) {
	c, reg, l := newController(t, nil)

	feed(t, c,
		"Got new job: match",
		"abcd 1 (D4)",
		"abcd 2 (D4)",
		"abcd 3 (Q16)",
	)

	assert.True(t, l.hasPrefix("Illegal move attempted: W D4"))
	assert.Contains(t, l.messages, "Position:")

	b := reg.Focus().Board
	assert.Equal(t, 3, b.MoveNum(), "the stream keeps going")
	assert.Equal(t, goboard.Black, b.CurrPos().ColorAt(goboard.Point{X: 3, Y: 3}))
	assert.Equal(t, goboard.White, b.CurrPos().ColorAt(goboard.Point{X: 15, Y: 15}),
		"the board still has white to move after the rejected move")
}

func TestBadMoveFormat(t *testing.T) {
	c, reg, l := newController(t, nil)

	feed(t, c,
		"Got new job: match",
		"abcd 1 (I5)",
		"abcd 2 (D4)",
	)

	assert.Contains(t, l.messages, "Bad move: I5")
	b := reg.Focus().Board
	assert.Equal(t, 2, b.MoveNum())
	assert.Equal(t, goboard.Black, b.CurrPos().ColorAt(goboard.Point{X: 3, Y: 3}), "the bad move was skipped")
}

func TestScoreMessage(t *testing.T) {
	c, reg, l := newController(t, nil)

	feed(t, c,
		"Got new job: match",
		"abcd 1 (D4)",
		"abcd Game has ended.",
		"Score: B+R",
	)

	assert.Contains(t, l.messages, "Result: B+R")
	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "B+R", list[0].Score)
}

func TestScoreReachesSavedGame(t *testing.T) {
	dir := t.TempDir()
	store, err := archive.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	c, _, _ := newController(t, registry.MultiSink{&registry.FileSink{Dir: dir}, store})

	feed(t, c,
		"Got new job: match",
		"abcd 1 (Q16)",
		"abcd Game has ended.",
		"Score: B+R",
	)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the score line saves the held game")
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "(;FF[4]GM[1]SZ[19]RE[B+R];B[pp])", string(data))

	games, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "abcd", games[0].Seed)
	assert.Equal(t, "B+R", games[0].Score)

	// A game without a score line is saved by the next event.
	feed(t, c,
		"Got new job: match",
		"beef 1 (D4)",
		"beef Game has ended.",
		"Got new job: match",
	)
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInProgressConcurrentReads(t *testing.T) {
	c, _, _ := newController(t, nil)

	var lines []string
	for i := 0; i < 50; i++ {
		seed := fmt.Sprintf("s%03d", i)
		lines = append(lines, "Got new job: selfplay", seed+" 1 (D4)", seed+" Game has ended.")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = c.InProgress()
			}
		}
	}()

	feed(t, c, lines...)
	close(done)
	wg.Wait()

	assert.False(t, c.InProgress())
}

func TestBoundedBoardList(t *testing.T) {
	c, reg, _ := newController(t, nil)

	var lines, want []string
	for i := 0; i < 12; i++ {
		seed := string(rune('a'+i)) + "seed"
		lines = append(lines, "Got new job: selfplay", seed+" 1 (D4)")
		want = append(want, seed)
	}
	feed(t, c, lines...)

	assert.Equal(t, want[2:], reg.Seeds())
}

func TestMovesForUnknownSeedIgnored(t *testing.T) {
	c, reg, _ := newController(t, nil)

	feed(t, c, "f00d 57 (D4)")

	assert.Empty(t, reg.Seeds())
	assert.True(t, c.InProgress())
}

func TestUpcomingGameType(t *testing.T) {
	c, reg, _ := newController(t, nil)

	feed(t, c,
		"Got new job: match",
		"aaaa 1 (D4)",
		"Got new job: validation",
		"bbbb 1 (D4)",
	)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, goboard.TypeMatch, list[0].Type)
	assert.Equal(t, goboard.TypeUnknown, list[1].Type)
}

func TestNavigate(t *testing.T) {
	c, _, l := newController(t, nil)

	feed(t, c,
		"Got new job: match",
		"aaaa 1 (D4)",
		"aaaa 2 (Q16)",
		"bbbb 1 (D4)",
	)
	l.messages = nil

	assert.True(t, c.Navigate(false))
	assert.Equal(t, []string{"Playing match starting at 2 game: aaaa"}, l.messages)
	assert.False(t, c.Navigate(false))
	assert.True(t, c.Navigate(true))
	assert.Equal(t, "Playing match starting at 1 game: bbbb", l.messages[len(l.messages)-1])
}

func TestSaveFailureReported(t *testing.T) {
	boom := errors.New("disk full")
	c, reg, l := newController(t, registry.SinkFunc(func(*registry.Entry) error { return boom }))

	feed(t, c,
		"Got new job: match",
		"abcd 1 (D4)",
		"abcd Game has ended.",
	)
	c.Flush()

	assert.True(t, l.hasPrefix("Failed to save games: disk full"))
	_, finished := reg.Counts()
	assert.Zero(t, finished, "failed games are dropped")
}

func TestListeners(t *testing.T) {
	var got []string
	a := ListenerFuncs{Message: func(m string) { got = append(got, "a:"+m) }}
	b := &recordingListener{}
	multi := MultiListener{a, b, ListenerFuncs{}}

	multi.OnMessage("hi")
	multi.OnProgress(true)

	assert.Equal(t, []string{"a:hi"}, got)
	assert.Equal(t, []string{"hi"}, b.messages)
	assert.Equal(t, []bool{true}, b.progress)
}
