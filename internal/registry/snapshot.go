package registry

import "github.com/dmmcquay/leelawatcher/internal/goboard"

// Snapshot is a copy of the focus board safe to use on any goroutine.
type Snapshot struct {
	Seed     string            `json:"seed"`
	Type     goboard.Type      `json:"type"`
	MoveNum  int               `json:"moveNum"`
	ToMove   goboard.Color     `json:"toMove"`
	LastMove *goboard.Point    `json:"lastMove,omitempty"`
	GameOver bool              `json:"gameOver"`
	Score    string            `json:"score,omitempty"`
	Endgame  bool              `json:"endgame"`
	Index    int               `json:"index"`
	Count    int               `json:"count"`
	Rows     []string          `json:"rows"`
	Stones   [][]goboard.Color `json:"stones"`
	Position goboard.Position  `json:"-"`
}

// Summary describes one entry of the navigation list.
type Summary struct {
	Seed     string       `json:"seed"`
	Type     goboard.Type `json:"type"`
	MoveNum  int          `json:"moveNum"`
	GameOver bool         `json:"gameOver"`
	Score    string       `json:"score,omitempty"`
	Focus    bool         `json:"focus"`
}

// Snapshot copies the focus board. ok is false when there are no boards.
func (r *Registry) Snapshot() (snap Snapshot, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.effectiveFocus()
	if e == nil {
		return Snapshot{}, false
	}

	b := e.Board
	pos := b.CurrPos()
	snap = Snapshot{
		Seed:     e.Seed,
		Type:     e.Type,
		MoveNum:  b.MoveNum(),
		ToMove:   b.ToMove(),
		GameOver: b.IsGameOver(),
		Score:    e.Score,
		Endgame:  b.MoveNum() >= r.postEndgameThreshold,
		Index:    r.focusIndex(),
		Count:    len(r.list),
		Rows:     pos.Rows(),
		Stones:   pos.Grid(),
		Position: pos,
	}
	if last := b.LastMove(); last != nil {
		p := last.Point
		snap.LastMove = &p
	}
	return snap, true
}

// List summarizes the navigation list, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	focus := r.effectiveFocus()
	out := make([]Summary, 0, len(r.list))
	for _, e := range r.list {
		out = append(out, Summary{
			Seed:     e.Seed,
			Type:     e.Type,
			MoveNum:  e.Board.MoveNum(),
			GameOver: e.Board.IsGameOver(),
			Score:    e.Score,
			Focus:    e == focus,
		})
	}
	return out
}
