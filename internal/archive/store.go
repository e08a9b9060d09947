// Package archive keeps finished games in a BadgerDB database.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dmmcquay/leelawatcher/internal/registry"
	"github.com/dmmcquay/leelawatcher/internal/sgf"
)

const gamePrefix = "game/"

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("game not found")

// Game is an archived finished game.
type Game struct {
	ID      string    `json:"id"`
	Seed    string    `json:"seed"`
	Type    string    `json:"type"`
	Score   string    `json:"score,omitempty"`
	Moves   int       `json:"moves"`
	SavedAt time.Time `json:"savedAt"`
	SGF     string    `json:"sgf"`
}

// Store wraps BadgerDB. It implements registry.Sink.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the archive in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens an archive that lives only as long as the Store.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save archives e.
func (s *Store) Save(e *registry.Entry) error {
	var buf bytes.Buffer
	if err := sgf.Write(&buf, e.Board); err != nil {
		return fmt.Errorf("archive %s: %w", e.Seed, err)
	}

	g := Game{
		ID:      uuid.NewString(),
		Seed:    e.Seed,
		Type:    e.Type.String(),
		Score:   e.Score,
		Moves:   len(e.Board.MainLine()),
		SavedAt: s.now().UTC(),
		SGF:     buf.String(),
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("archive %s: %w", e.Seed, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(gamePrefix+g.ID), data)
	})
}

// Get loads one game.
func (s *Store) Get(id string) (*Game, error) {
	var g Game
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(gamePrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &g)
		})
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns up to limit games, newest first. limit <= 0 returns all.
// The SGF text is left out.
func (s *Store) List(limit int) ([]Game, error) {
	var games []Game
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(gamePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var g Game
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &g)
			}); err != nil {
				return err
			}
			g.SGF = ""
			games = append(games, g)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	sort.Slice(games, func(i, j int) bool {
		return games[i].SavedAt.After(games[j].SavedAt)
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

// Count returns the number of archived games.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(gamePrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
