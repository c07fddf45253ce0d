package main

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bodul/crossword-export/xword"
)

// StoredPuzzle is a validated puzzle kept for preview and download.
type StoredPuzzle struct {
	ID        string
	Puzzle    *xword.Puzzle
	CreatedAt time.Time
}

// PuzzleSummary is the JSON view of a stored puzzle.
type PuzzleSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Across    int             `json:"across"`
	Down      int             `json:"down"`
	Rebus     bool            `json:"rebus"`
	Numbering xword.Numbering `json:"numbering"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary describes the stored puzzle without its grid or clue text.
func (sp *StoredPuzzle) Summary() PuzzleSummary {
	p := sp.Puzzle
	return PuzzleSummary{
		ID:        sp.ID,
		Title:     p.Title(),
		Author:    p.Author(),
		Width:     p.Width(),
		Height:    p.Height(),
		Across:    len(p.AcrossClues()),
		Down:      len(p.DownClues()),
		Rebus:     p.HasRebus(),
		Numbering: p.Numbering(),
		CreatedAt: sp.CreatedAt,
	}
}

// Store holds validated puzzles in memory.
type Store struct {
	mu      sync.RWMutex
	puzzles map[string]*StoredPuzzle
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{puzzles: make(map[string]*StoredPuzzle)}
}

// SavePuzzle stores p under a fresh ID.
func (s *Store) SavePuzzle(p *xword.Puzzle) *StoredPuzzle {
	sp := &StoredPuzzle{
		ID:        uuid.NewString(),
		Puzzle:    p,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.puzzles[sp.ID] = sp
	s.mu.Unlock()

	return sp
}

// GetPuzzle returns a puzzle by ID, or nil if not found.
func (s *Store) GetPuzzle(id string) *StoredPuzzle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puzzles[id]
}

// ListPuzzles returns all puzzles, most recent first.
func (s *Store) ListPuzzles() []*StoredPuzzle {
	s.mu.RLock()
	list := make([]*StoredPuzzle, 0, len(s.puzzles))
	for _, sp := range s.puzzles {
		list = append(list, sp)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b *StoredPuzzle) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list
}

// DeletePuzzle removes a puzzle and reports whether it existed.
func (s *Store) DeletePuzzle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.puzzles[id]; !ok {
		return false
	}
	delete(s.puzzles, id)
	return true
}
