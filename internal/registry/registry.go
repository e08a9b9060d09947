// Package registry tracks the boards of every game the harness is playing and
// which of them is shown.
package registry

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
)

const (
	// SimulGameThreshold caps the navigation list.
	SimulGameThreshold = 10
	// DefaultPostEndgameThreshold is the move number past which a game is
	// flagged as being in its endgame.
	DefaultPostEndgameThreshold = 300
)

// Entry is one game known to the registry.
type Entry struct {
	Seed  string
	Type  goboard.Type
	Board *goboard.Board
	Score string
}

// Option configures a Registry.
type Option func(*Registry)

// WithBoardOptions applies opts to every board the registry creates.
func WithBoardOptions(opts ...goboard.Option) Option {
	return func(r *Registry) {
		r.boardOpts = append(r.boardOpts, opts...)
	}
}

// WithPostEndgameThreshold sets the endgame threshold.
func WithPostEndgameThreshold(n int) Option {
	return func(r *Registry) {
		r.postEndgameThreshold = n
	}
}

// Registry owns every board. Mutations come from a single goroutine; readers
// on other goroutines use Snapshot, List and the navigation methods.
type Registry struct {
	mu sync.RWMutex

	active   map[string]*Entry
	finished map[string]*Entry
	list     []*Entry
	focus    *Entry

	lastFinished *Entry

	postEndgameThreshold int
	boardOpts            []goboard.Option
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		active:               make(map[string]*Entry),
		finished:             make(map[string]*Entry),
		postEndgameThreshold: DefaultPostEndgameThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddNewBoard starts tracking a game. A seed that is already active is
// replaced by a fresh board.
func (r *Registry) AddNewBoard(seed string, t goboard.Type) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := append([]goboard.Option{goboard.WithSeed(seed)}, r.boardOpts...)
	e := &Entry{Seed: seed, Type: t, Board: goboard.NewBoard(t, opts...)}

	if old, ok := r.active[seed]; ok {
		r.removeFromList(old)
		if r.focus == old {
			r.focus = e
		}
	}
	r.active[seed] = e

	cur := r.effectiveFocus()
	atTail := cur == nil || cur == e || len(r.list) == 0 || cur == r.list[len(r.list)-1]

	r.list = append(r.list, e)
	for len(r.list) > SimulGameThreshold {
		if r.list[0] == r.focus {
			r.focus = nil
		}
		r.list[0] = nil
		r.list = r.list[1:]
	}

	if atTail {
		r.focus = e
	}
	return e
}

func (r *Registry) removeFromList(e *Entry) {
	for i, x := range r.list {
		if x == e {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return
		}
	}
}

// Move plays point on the active board for seed and records moveNum. Moves for
// unknown seeds are ignored. An illegal move is returned as
// *goboard.IllegalMoveError and leaves the board unchanged.
func (r *Registry) Move(seed string, p goboard.Point, moveNum int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.active[seed]
	if !ok {
		return nil
	}
	if err := e.Board.DoMove(p.X, p.Y); err != nil {
		return err
	}
	e.Board.SetMoveNum(moveNum)
	return nil
}

// ActiveType returns the game type of the live board for seed.
func (r *Registry) ActiveType(seed string) (goboard.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.active[seed]
	if !ok {
		return goboard.TypeUnknown, false
	}
	return e.Type, true
}

// FinishBoard moves seed from active to finished. Focus is unchanged.
func (r *Registry) FinishBoard(seed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.active[seed]
	if !ok {
		return false
	}
	delete(r.active, seed)
	e.Board.SetGameOver()
	r.finished[seed] = e
	r.lastFinished = e
	return true
}

// SetScore attaches score to the most recently finished game and returns its
// seed. ok is false when no game has finished since the last reset.
func (r *Registry) SetScore(score string) (seed string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastFinished == nil {
		return "", false
	}
	r.lastFinished.Score = score
	r.lastFinished.Board.SetScore(score)
	return r.lastFinished.Seed, true
}

// Reset forgets every game.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = make(map[string]*Entry)
	r.finished = make(map[string]*Entry)
	r.list = nil
	r.focus = nil
	r.lastFinished = nil
}

// effectiveFocus resolves a cleared focus to the head of the list.
func (r *Registry) effectiveFocus() *Entry {
	if r.focus != nil {
		return r.focus
	}
	if len(r.list) > 0 {
		return r.list[0]
	}
	return nil
}

func (r *Registry) focusIndex() int {
	cur := r.effectiveFocus()
	for i, e := range r.list {
		if e == cur {
			return i
		}
	}
	return -1
}

// PreviousBoard moves focus one entry towards the head of the list.
func (r *Registry) PreviousBoard() bool {
	return r.step(-1)
}

// NextBoard moves focus one entry towards the tail of the list.
func (r *Registry) NextBoard() bool {
	return r.step(1)
}

func (r *Registry) step(delta int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.focusIndex()
	if i < 0 {
		return false
	}
	j := i + delta
	if j < 0 || j >= len(r.list) {
		return false
	}
	r.focus = r.list[j]
	return true
}

// Focus returns the entry on display, or nil when there are no boards. The
// entry is shared with the registry and must only be used by the goroutine
// that mutates it.
func (r *Registry) Focus() *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.effectiveFocus()
}

// PostEndgameThreshold returns the endgame threshold.
func (r *Registry) PostEndgameThreshold() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postEndgameThreshold
}

// Counts returns the number of active and finished boards.
func (r *Registry) Counts() (active, finished int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active), len(r.finished)
}

// Seeds returns the seeds of the navigation list, oldest first.
func (r *Registry) Seeds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seeds := make([]string, len(r.list))
	for i, e := range r.list {
		seeds[i] = e.Seed
	}
	return seeds
}

// TakeFinished removes every finished game from the registry and returns
// them ordered by seed. The entries stay in the navigation list, and a later
// SetScore still reaches the most recently finished one.
func (r *Registry) TakeFinished() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*Entry, 0, len(r.finished))
	for _, seed := range slices.Sorted(maps.Keys(r.finished)) {
		entries = append(entries, r.finished[seed])
	}
	r.finished = make(map[string]*Entry)
	return entries
}

// SaveGames hands every finished game to sink and then forgets all of them,
// even the ones sink failed to save.
func (r *Registry) SaveGames(sink Sink) error {
	return SaveEntries(sink, r.TakeFinished())
}

// SaveEntries saves each entry and joins the failures.
func SaveEntries(sink Sink, entries []*Entry) error {
	var errs []error
	for _, e := range entries {
		if err := sink.Save(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
