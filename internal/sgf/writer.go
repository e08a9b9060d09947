package sgf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmmcquay/leelawatcher/internal/goboard"
)

const header = "(;FF[4]GM[1]SZ[19]"

// Coord converts a point to SGF letters, column first, both counted from 'a'
// at index 0. Rows are not flipped, so row 1 of the harness is 'a' and Q16 is
// written "pp". SGF viewers count rows from the top, so saved games show
// mirrored top to bottom against the harness output. Moves stay legal and
// the files round-trip through PointFromCoord. Pass is "".
func Coord(p goboard.Point) string {
	if p.IsPass() || !p.OnBoard() {
		return ""
	}
	return string([]byte{byte('a' + p.X), byte('a' + p.Y)})
}

// PointFromCoord is the inverse of Coord. "" and "tt" are passes.
func PointFromCoord(coord string) (goboard.Point, error) {
	if coord == "" || coord == "tt" {
		return goboard.Pass, nil
	}
	if len(coord) != 2 {
		return goboard.Point{}, fmt.Errorf("invalid sgf coordinate %q", coord)
	}
	p := goboard.Point{X: int(coord[0] - 'a'), Y: int(coord[1] - 'a')}
	if !p.OnBoard() {
		return goboard.Point{}, fmt.Errorf("sgf coordinate %q off board", coord)
	}
	return p, nil
}

// Write serializes the main line of b as a single game tree.
func Write(w io.Writer, b *goboard.Board) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(header)
	if score := b.Score(); score != "" {
		fmt.Fprintf(bw, "RE[%s]", escape(score))
	}

	for _, m := range b.MainLine() {
		prop := "B"
		if m.Color == goboard.White {
			prop = "W"
		}
		fmt.Fprintf(bw, ";%s[%s]", prop, Coord(m.Point))
	}
	bw.WriteString(")")

	return bw.Flush()
}

// SaveGame writes b to path, replacing any existing file.
func SaveGame(path string, b *goboard.Board) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sgf file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close sgf file: %w", cerr)
		}
	}()

	if err := Write(f, b); err != nil {
		return fmt.Errorf("failed to write sgf file: %w", err)
	}
	return nil
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "]", "\\]")
}
