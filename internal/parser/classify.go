package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
)

// ErrBadMoveFormat is returned for vertices ParseMove cannot read.
var ErrBadMoveFormat = errors.New("bad move format")

// Patterns match whole lines with optional surrounding whitespace. Order
// matters: the first match wins.
var (
	gameStartRe = regexp.MustCompile(`^\s*Got new job:\s(\w+)\s*$`)
	moveRe      = regexp.MustCompile(`^\s*(\w+)\s(\d+)\s\((?:[BW]\s)?(\w+)\)\s*$`)
	gameOverRe  = regexp.MustCompile(`^\s*(\w+)\sGame has ended\.\s*$`)
	scoreRe     = regexp.MustCompile(`^\s*Score:\s(.*?)\s*$`)
	errorRe     = regexp.MustCompile(`^\s*\*ERROR\*:\s(.+?)\s*$`)

	vertexRe = regexp.MustCompile(`^(?:(.)(\d+)|(pass)|(resign))$`)
)

// Classify turns a line (without its line ending) into an event. ok is false
// for lines that match no pattern.
func Classify(line string) (ev Event, ok bool) {
	if m := gameStartRe.FindStringSubmatch(line); m != nil {
		return GameStart{GameType: m[1], Raw: line}, true
	}
	if m := moveRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			// Only overflow gets here.
			return nil, false
		}
		return Move{Seed: m[1], MoveNum: n, Vertex: m[3], Raw: line}, true
	}
	if m := gameOverRe.FindStringSubmatch(line); m != nil {
		return GameOver{Seed: m[1], Raw: line}, true
	}
	if m := scoreRe.FindStringSubmatch(line); m != nil {
		return Score{Text: m[1], Raw: line}, true
	}
	if m := errorRe.FindStringSubmatch(line); m != nil {
		return HarnessError{Text: m[1], Raw: line}, true
	}
	return nil, false
}

// ParseMove converts a harness vertex to a board point. The harness skips the
// letter I, so columns after H shift down by one. pass and resign both map to
// goboard.Pass.
func ParseMove(vertex string) (goboard.Point, error) {
	m := vertexRe.FindStringSubmatch(strings.ToLower(vertex))
	if m == nil {
		return goboard.Point{}, fmt.Errorf("%w: %q", ErrBadMoveFormat, vertex)
	}
	if m[3] != "" || m[4] != "" {
		return goboard.Pass, nil
	}

	letter := m[1][0]
	if letter < 'a' || letter > 't' || letter == 'i' {
		return goboard.Point{}, fmt.Errorf("%w: column %q", ErrBadMoveFormat, m[1])
	}
	x := int(letter - 'a')
	if x > 8 {
		x--
	}

	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 || row > goboard.Size {
		return goboard.Point{}, fmt.Errorf("%w: row %q", ErrBadMoveFormat, m[2])
	}
	return goboard.Point{X: x, Y: row - 1}, nil
}

// ParseGameType maps the harness job name to a board type.
func ParseGameType(s string) goboard.Type {
	return goboard.ParseType(s)
}
