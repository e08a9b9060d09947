package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/sgf"
)

// Sink receives finished games from SaveGames.
type Sink interface {
	Save(e *Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e *Entry) error

func (f SinkFunc) Save(e *Entry) error { return f(e) }

// timestampLayout is ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FileSink writes each game to Dir as <timestamp>_<seed>.sgf, with the colons
// of the timestamp replaced by underscores. An empty Dir is the working
// directory.
type FileSink struct {
	Dir string
	Now func() time.Time

	// Written is called with the path of every file saved.
	Written func(path string)
}

// FileName returns the file name used for seed at time t.
func FileName(t time.Time, seed string) string {
	stamp := strings.ReplaceAll(t.UTC().Format(timestampLayout), ":", "_")
	return stamp + "_" + seed + ".sgf"
}

func (s *FileSink) Save(e *Entry) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	path := filepath.Join(s.Dir, FileName(now(), e.Seed))
	if err := sgf.SaveGame(path, e.Board); err != nil {
		return fmt.Errorf("save game %s: %w", e.Seed, err)
	}
	if s.Written != nil {
		s.Written(path)
	}
	return nil
}

// DiscardSink drops every game.
type DiscardSink struct{}

func (DiscardSink) Save(*Entry) error { return nil }

// MultiSink hands each game to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Save(e *Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
