package xword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// layout builds a grid from rows where '#' is a block, '.' an open cell with
// no fill and any other rune an open cell filled with that rune.
func layout(rows ...string) (width, height int, cells []Cell) {
	height = len(rows)
	for _, r := range rows {
		runes := []rune(r)
		width = len(runes)
		for _, ch := range runes {
			switch ch {
			case '#':
				cells = append(cells, Black())
			case '.':
				cells = append(cells, Open(""))
			default:
				cells = append(cells, Open(string(ch)))
			}
		}
	}
	return width, height, cells
}

func clues(numbers ...int) []Clue {
	out := make([]Clue, len(numbers))
	for i, n := range numbers {
		out[i] = Clue{Number: n, Text: "clue " + strings.Repeat("x", i+1)}
	}
	return out
}

// rawPuzzle returns a consistent puzzle for the given layout, with clue
// numbers taken from the grid.
func rawPuzzle(rows ...string) RawPuzzle {
	w, h, cells := layout(rows...)
	n := NumberCells(w, h, cells)
	return RawPuzzle{
		Width:       w,
		Height:      h,
		Grid:        cells,
		Title:       "Test Puzzle",
		Author:      "Anonymous",
		Copyright:   "Copyright Anonymous, all rights reserved",
		Notes:       "Created for tests",
		AcrossClues: clues(Numbers(n.Across)...),
		DownClues:   clues(Numbers(n.Down)...),
	}
}

func mustValidate(t *testing.T, raw RawPuzzle) *Puzzle {
	t.Helper()
	p, err := Validate(raw)
	require.NoError(t, err)
	return p
}
