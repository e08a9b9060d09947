package parser

// Event is one classified line of harness output.
type Event interface {
	// Kind names the event for logs and metrics.
	Kind() string
	// Line is the raw line the event was parsed from.
	Line() string
	event()
}

// GameStart announces the type of the next game. Its seed is not known until
// the game's first move.
type GameStart struct {
	GameType string
	Raw      string
}

// Move is a move of the game identified by Seed. Vertex is in harness
// notation ("Q16", "pass", "resign").
type Move struct {
	Seed    string
	MoveNum int
	Vertex  string
	Raw     string
}

// GameOver reports the end of the game identified by Seed.
type GameOver struct {
	Seed string
	Raw  string
}

// Score carries the result of the game that ended last.
type Score struct {
	Text string
	Raw  string
}

// HarnessError is an error reported by the harness. The game state is no
// longer trustworthy after one.
type HarnessError struct {
	Text string
	Raw  string
}

func (GameStart) Kind() string    { return "game_start" }
func (Move) Kind() string         { return "move" }
func (GameOver) Kind() string     { return "game_over" }
func (Score) Kind() string        { return "score" }
func (HarnessError) Kind() string { return "error" }

func (e GameStart) Line() string    { return e.Raw }
func (e Move) Line() string         { return e.Raw }
func (e GameOver) Line() string     { return e.Raw }
func (e Score) Line() string        { return e.Raw }
func (e HarnessError) Line() string { return e.Raw }

func (GameStart) event()    {}
func (Move) event()         {}
func (GameOver) event()     {}
func (Score) event()        {}
func (HarnessError) event() {}

// Handler consumes events on the parser goroutine.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event)

func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }
