package sgf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
)

// RecordMove is one node of a parsed main line.
type RecordMove struct {
	Color goboard.Color
	Point goboard.Point
}

// Record is the main line of an SGF game tree.
type Record struct {
	Size   int
	Result string
	Moves  []RecordMove
}

// Parse reads the main line of the first game tree in content. Variations are
// skipped.
func Parse(content string) (*Record, error) {
	r := &reader{content: strings.TrimSpace(content)}
	return r.parse()
}

// Replay plays rec onto a fresh board of type t.
func Replay(rec *Record, t goboard.Type, opts ...goboard.Option) (*goboard.Board, error) {
	b := goboard.NewBoard(t, opts...)
	for i, m := range rec.Moves {
		if m.Color != b.ToMove() {
			return nil, fmt.Errorf("move %d: expected %s to play, got %s", i+1, b.ToMove(), m.Color)
		}
		if err := b.DoMove(m.Point.X, m.Point.Y); err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	if rec.Result != "" {
		b.SetScore(rec.Result)
	}
	return b, nil
}

type reader struct {
	content string
	index   int
}

func (r *reader) parse() (*Record, error) {
	if !r.skipTo('(') {
		return nil, fmt.Errorf("invalid SGF: no opening parenthesis")
	}
	r.index++

	rec := &Record{Size: goboard.Size}
	for r.index < len(r.content) {
		r.skipWhitespace()
		if r.index >= len(r.content) {
			break
		}

		switch r.content[r.index] {
		case ')':
			return rec, nil
		case ';':
			r.index++
			if err := r.parseNode(rec); err != nil {
				return nil, err
			}
		case '(':
			r.skipVariation()
		default:
			r.index++
		}
	}
	return nil, fmt.Errorf("invalid SGF: unterminated game tree")
}

func (r *reader) parseNode(rec *Record) error {
	for r.index < len(r.content) {
		r.skipWhitespace()
		if r.index >= len(r.content) {
			break
		}
		if c := r.content[r.index]; c == ';' || c == ')' || c == '(' {
			break
		}

		prop, values, err := r.parseProperty()
		if err != nil {
			return err
		}

		switch prop {
		case "B", "W":
			color := goboard.Black
			if prop == "W" {
				color = goboard.White
			}
			p, err := PointFromCoord(values[0])
			if err != nil {
				return err
			}
			rec.Moves = append(rec.Moves, RecordMove{Color: color, Point: p})
		case "SZ":
			size, err := strconv.Atoi(values[0])
			if err != nil {
				return fmt.Errorf("invalid board size %q", values[0])
			}
			rec.Size = size
		case "RE":
			rec.Result = values[0]
		}
	}
	return nil
}

func (r *reader) parseProperty() (string, []string, error) {
	start := r.index
	for r.index < len(r.content) && r.content[r.index] >= 'A' && r.content[r.index] <= 'Z' {
		r.index++
	}
	if r.index == start {
		return "", nil, fmt.Errorf("expected property name at position %d", r.index)
	}
	prop := r.content[start:r.index]

	var values []string
	for {
		r.skipWhitespace()
		if r.index >= len(r.content) || r.content[r.index] != '[' {
			break
		}
		r.index++

		var sb strings.Builder
		closed := false
		for r.index < len(r.content) {
			c := r.content[r.index]
			r.index++
			if c == '\\' && r.index < len(r.content) {
				sb.WriteByte(r.content[r.index])
				r.index++
				continue
			}
			if c == ']' {
				closed = true
				break
			}
			sb.WriteByte(c)
		}
		if !closed {
			return "", nil, fmt.Errorf("unclosed value for property %s", prop)
		}
		values = append(values, sb.String())
	}

	if len(values) == 0 {
		return "", nil, fmt.Errorf("property %s must have at least one value", prop)
	}
	return prop, values, nil
}

func (r *reader) skipWhitespace() {
	for r.index < len(r.content) {
		switch r.content[r.index] {
		case ' ', '\t', '\n', '\r':
			r.index++
		default:
			return
		}
	}
}

func (r *reader) skipTo(ch byte) bool {
	for r.index < len(r.content) {
		if r.content[r.index] == ch {
			return true
		}
		r.index++
	}
	return false
}

func (r *reader) skipVariation() {
	depth := 0
	for r.index < len(r.content) {
		switch r.content[r.index] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				r.index++
				return
			}
		}
		r.index++
	}
}
