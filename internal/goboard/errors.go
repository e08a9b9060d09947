package goboard

import (
	"errors"
	"fmt"
)

// ErrIllegalMove is matched by every IllegalMoveError.
var ErrIllegalMove = errors.New("illegal move")

// IllegalMoveError carries the rejected move and the position it was tried on.
type IllegalMoveError struct {
	Proposed Move
	Position Position
	Reason   string
}

func (e *IllegalMoveError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("illegal move %s %s", e.Proposed.Color, e.Proposed.Point)
	}
	return fmt.Sprintf("illegal move %s %s: %s", e.Proposed.Color, e.Proposed.Point, e.Reason)
}

func (e *IllegalMoveError) Is(target error) bool {
	return target == ErrIllegalMove
}
