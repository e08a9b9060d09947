// Package watcher applies harness events to the board registry.
package watcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
	"github.com/dmmcquay/leelawatcher/internal/parser"
	"github.com/dmmcquay/leelawatcher/internal/registry"
)

// Controller is the single consumer of parser events. HandleEvent and Flush
// must be called from one goroutine; Navigate and InProgress may be called
// from any.
//
// Games finished when progress ends are held until the score line that
// follows them, or the next game event, so the result reaches the sinks.
type Controller struct {
	registry *registry.Registry
	sink     registry.Sink
	listener Listener
	logger   logging.ContextLogger
	metrics  *metrics.PrometheusCollector

	upcoming   goboard.Type
	inProgress atomic.Bool
	unsaved    []*registry.Entry

	focusMu   sync.Mutex
	focusSeed string
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener sets the observer for messages and progress changes.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.ContextLogger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMetrics records per-event metrics.
func WithMetrics(m *metrics.PrometheusCollector) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates a controller saving finished games to sink. A nil sink
// discards them.
func New(reg *registry.Registry, sink registry.Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = registry.DiscardSink{}
	}
	c := &Controller{
		registry: reg,
		sink:     sink,
		listener: ListenerFuncs{},
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "controller")
	return c
}

// InProgress reports whether a game is being played.
func (c *Controller) InProgress() bool {
	return c.inProgress.Load()
}

// HandleEvent applies ev. Failures are reported as messages and never stop
// the stream.
func (c *Controller) HandleEvent(ev parser.Event) {
	switch e := ev.(type) {
	case parser.GameStart:
		c.Flush()
		c.upcoming = parser.ParseGameType(e.GameType)
		c.logger.Info("Game start", "type", c.upcoming.String())

	case parser.Move:
		c.Flush()
		c.handleMove(e)

	case parser.GameOver:
		if c.registry.FinishBoard(e.Seed) {
			c.logger.Info("Game over", "seed", e.Seed)
			c.record(func(m *metrics.PrometheusCollector) { m.RecordGameFinished() })
		} else {
			c.logger.Debug("Game over for unknown seed", "seed", e.Seed)
		}
		c.setInProgress(false)

	case parser.Score:
		if seed, ok := c.registry.SetScore(e.Text); ok {
			c.logger.Info("Score", "seed", seed, "result", e.Text)
		}
		c.message("Result: " + e.Text)
		c.Flush()

	case parser.HarnessError:
		c.logger.Error("Harness error, resetting boards", "text", e.Text)
		c.Flush()
		c.registry.Reset()
		c.record(func(m *metrics.PrometheusCollector) { m.RecordReset() })
		c.message("Harness error: " + e.Text)
		c.setInProgress(false)
	}

	c.checkFocus()
	c.record(func(m *metrics.PrometheusCollector) { m.SetBoards(c.registry.Counts()) })
}

func (c *Controller) handleMove(e parser.Move) {
	if e.MoveNum == 1 {
		c.registry.AddNewBoard(e.Seed, c.upcoming)
		c.logger.Info("New board", "seed", e.Seed, "type", c.upcoming.String())
		c.record(func(m *metrics.PrometheusCollector) { m.RecordGameStarted(c.upcoming.String()) })
	}
	c.setInProgress(true)

	p, err := parser.ParseMove(e.Vertex)
	if err != nil {
		c.logger.Warn("Bad move", "seed", e.Seed, "vertex", e.Vertex, "error", err.Error())
		c.record(func(m *metrics.PrometheusCollector) { m.RecordMoveError("bad_format") })
		c.message(fmt.Sprintf("Bad move: %s", e.Vertex))
		return
	}

	typ, active := c.registry.ActiveType(e.Seed)
	if !active {
		c.logger.Debug("Move for unknown seed", "seed", e.Seed, "moveNum", e.MoveNum)
		return
	}

	err = c.registry.Move(e.Seed, p, e.MoveNum)
	var illegal *goboard.IllegalMoveError
	switch {
	case err == nil:
		c.record(func(m *metrics.PrometheusCollector) { m.RecordMove(typ.String()) })
	case errors.As(err, &illegal):
		c.logger.Warn("Illegal move", "seed", e.Seed, "move", illegal.Proposed.String(), "reason", illegal.Reason)
		c.record(func(m *metrics.PrometheusCollector) { m.RecordMoveError("illegal") })
		c.message("Illegal move attempted: " + illegal.Proposed.String())
		c.message("Position:")
		c.message(illegal.Position.String())
	default:
		c.logger.Error("Move failed", "seed", e.Seed, "error", err.Error())
		c.message(fmt.Sprintf("Move failed: %v", err))
	}
}

// setInProgress fires the listener on changes. The true to false edge takes
// the finished games for the next Flush.
func (c *Controller) setInProgress(v bool) {
	if c.inProgress.Swap(v) == v {
		return
	}
	c.listener.OnProgress(v)
	if !v {
		c.unsaved = append(c.unsaved, c.registry.TakeFinished()...)
	}
}

// Flush saves the games taken when progress last ended. Call it once the
// stream is over so the final games are not lost.
func (c *Controller) Flush() {
	if len(c.unsaved) == 0 {
		return
	}
	entries := c.unsaved
	c.unsaved = nil

	counted := registry.SinkFunc(func(e *registry.Entry) error {
		err := c.sink.Save(e)
		c.record(func(m *metrics.PrometheusCollector) { m.RecordSGFWrite(err == nil) })
		if err == nil {
			c.logger.Info("Saved game", "seed", e.Seed, "moves", e.Board.MoveNum())
		}
		return err
	})
	if err := registry.SaveEntries(counted, entries); err != nil {
		c.logger.Error("Failed to save games", "error", err.Error())
		c.message(fmt.Sprintf("Failed to save games: %v", err))
	}
}

// Navigate moves the focus forward or back and reports whether it moved.
func (c *Controller) Navigate(forward bool) bool {
	var moved bool
	if forward {
		moved = c.registry.NextBoard()
	} else {
		moved = c.registry.PreviousBoard()
	}
	if moved {
		c.checkFocus()
	}
	return moved
}

// checkFocus announces a change of the displayed game.
func (c *Controller) checkFocus() {
	snap, ok := c.registry.Snapshot()

	c.focusMu.Lock()
	seed := ""
	if ok {
		seed = snap.Seed
	}
	changed := seed != c.focusSeed
	c.focusSeed = seed
	c.focusMu.Unlock()

	if changed && ok {
		c.message(fmt.Sprintf("Playing %s starting at %d game: %s", snap.Type, snap.MoveNum, snap.Seed))
	}
}

func (c *Controller) message(msg string) {
	c.listener.OnMessage(msg)
}

func (c *Controller) record(f func(m *metrics.PrometheusCollector)) {
	if c.metrics != nil {
		f(c.metrics)
	}
}
