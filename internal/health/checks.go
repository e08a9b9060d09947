package health

import (
	"context"
	"errors"
	"fmt"
)

// Harness is the child process the watcher reads from.
type Harness interface {
	IsRunning() bool
	Err() error
}

// HarnessCheck fails once the harness is not running, with its exit error
// when it has one.
func HarnessCheck(h Harness) Check {
	return func(ctx context.Context) error {
		if h.IsRunning() {
			return nil
		}
		if err := h.Err(); err != nil {
			return fmt.Errorf("harness exited: %w", err)
		}
		return errors.New("harness is not running")
	}
}

// Archive is the finished game store.
type Archive interface {
	Count() (int, error)
}

// ArchiveCheck fails when the archive cannot be read.
func ArchiveCheck(a Archive) Check {
	return func(ctx context.Context) error {
		if _, err := a.Count(); err != nil {
			return fmt.Errorf("archive unreadable: %w", err)
		}
		return nil
	}
}
