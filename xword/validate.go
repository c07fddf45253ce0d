package xword

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Puzzle is a crossword that passed Validate. Its fields are unexported and
// every accessor returns a copy, so a Puzzle never changes after creation.
type Puzzle struct {
	width, height int
	cells         []Cell
	across, down  []Clue
	title         string
	author        string
	copyright     string
	notes         string
	numbering     Numbering
}

// Validate checks raw and returns the validated Puzzle. On failure the error
// is a FieldErrors holding every violation; all checks run regardless of
// earlier failures.
func Validate(raw RawPuzzle) (*Puzzle, error) {
	errs := FieldErrors{}

	var numbering Numbering
	if checkShape(raw, errs) {
		numbering = NumberCells(raw.Width, raw.Height, raw.Grid)
		checkClueNumbers(FieldAcrossClues, numbering.Across, raw.AcrossClues, errs)
		checkClueNumbers(FieldDownClues, numbering.Down, raw.DownClues, errs)
	}

	checkText(FieldTitle, raw.Title, errs)
	checkText(FieldAuthor, raw.Author, errs)
	checkText(FieldCopyright, raw.Copyright, errs)
	checkText(FieldNotes, raw.Notes, errs)
	checkClueText(FieldAcrossClues, raw.AcrossClues, errs)
	checkClueText(FieldDownClues, raw.DownClues, errs)
	checkFill(raw, errs)

	if len(errs) > 0 {
		return nil, errs
	}
	return &Puzzle{
		width:     raw.Width,
		height:    raw.Height,
		cells:     append([]Cell(nil), raw.Grid...),
		across:    append([]Clue(nil), raw.AcrossClues...),
		down:      append([]Clue(nil), raw.DownClues...),
		title:     raw.Title,
		author:    raw.Author,
		copyright: raw.Copyright,
		notes:     raw.Notes,
		numbering: numbering,
	}, nil
}

// checkShape reports whether the grid has exactly width*height cells.
func checkShape(raw RawPuzzle, errs FieldErrors) bool {
	ok := true
	if raw.Width <= 0 {
		errs.Add(FieldWidth, fmt.Sprintf("width must be positive, found %d", raw.Width))
		ok = false
	}
	if raw.Height <= 0 {
		errs.Add(FieldHeight, fmt.Sprintf("height must be positive, found %d", raw.Height))
		ok = false
	}
	if !ok {
		errs.Add(FieldGrid, "grid dimensions are invalid")
		return false
	}
	// Comparing each side first keeps width*height from overflowing.
	n := len(raw.Grid)
	if raw.Width > n || raw.Height > n || raw.Width*raw.Height != n {
		errs.Add(FieldGrid, fmt.Sprintf("expected %d×%d grid to have %d cells, found %d",
			raw.Width, raw.Height, raw.Width*raw.Height, n))
		return false
	}
	return true
}

func checkClueNumbers(field string, expected []Entry, actual []Clue, errs FieldErrors) {
	for i := 1; i < len(actual); i++ {
		if actual[i-1].Number >= actual[i].Number {
			errs.Add(field, "found misordered clues. Clue numbers must be strictly increasing")
			break
		}
	}

	if len(expected) != len(actual) {
		errs.Add(field, fmt.Sprintf("expected %d clues, found %d", len(expected), len(actual)))
		return
	}
	for i, e := range expected {
		if got := actual[i].Number; got != e.Number {
			errs.Add(field, fmt.Sprintf("clue %d: expected #%d, found #%d", i+1, e.Number, got))
		}
	}
}

func checkText(field, s string, errs FieldErrors) {
	if msg := textProblem(s); msg != "" {
		errs.Add(field, field+" "+msg)
	}
}

func checkClueText(field string, clues []Clue, errs FieldErrors) {
	for _, c := range clues {
		if strings.TrimSpace(c.Text) == "" {
			errs.Add(field, fmt.Sprintf("clue #%d has no text", c.Number))
			continue
		}
		if msg := textProblem(c.Text); msg != "" {
			errs.Add(field, fmt.Sprintf("clue #%d %s", c.Number, msg))
		}
	}
}

func checkFill(raw RawPuzzle, errs FieldErrors) {
	width := max(raw.Width, 1)
	for i, c := range raw.Grid {
		if c.Black {
			continue
		}
		if msg := textProblem(c.Fill); msg != "" {
			errs.Add(FieldGrid, fmt.Sprintf("cell (%d,%d) %s", i/width, i%width, msg))
		} else if c.Fill != "" && strings.TrimSpace(c.Fill) == "" {
			errs.Add(FieldGrid, fmt.Sprintf("cell (%d,%d) fill is only whitespace", i/width, i%width))
		}
	}
}

// textProblem describes why s cannot be stored as a NUL-terminated string,
// or returns "".
func textProblem(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		return "contains a NUL byte"
	}
	if !utf8.ValidString(s) {
		return "is not valid UTF-8"
	}
	return ""
}

// Width returns the number of columns.
func (p *Puzzle) Width() int { return p.width }

// Height returns the number of rows.
func (p *Puzzle) Height() int { return p.height }

// Cells returns the grid in row-major order.
func (p *Puzzle) Cells() []Cell { return append([]Cell(nil), p.cells...) }

// Cell returns the cell at row, col.
func (p *Puzzle) Cell(row, col int) Cell { return p.cells[row*p.width+col] }

func (p *Puzzle) AcrossClues() []Clue { return append([]Clue(nil), p.across...) }
func (p *Puzzle) DownClues() []Clue   { return append([]Clue(nil), p.down...) }
func (p *Puzzle) Title() string       { return p.title }
func (p *Puzzle) Author() string      { return p.author }
func (p *Puzzle) Copyright() string   { return p.copyright }
func (p *Puzzle) Notes() string       { return p.notes }

// Numbering returns the entry starts computed during validation.
func (p *Puzzle) Numbering() Numbering { return p.numbering.clone() }

// HasRebus reports whether any cell declares multi-character fill.
func (p *Puzzle) HasRebus() bool {
	for _, c := range p.cells {
		if c.IsRebus() {
			return true
		}
	}
	return false
}

// Raw returns the puzzle as caller input again, e.g. for storage or display.
func (p *Puzzle) Raw() RawPuzzle {
	return RawPuzzle{
		Width:       p.width,
		Height:      p.height,
		Grid:        p.Cells(),
		Title:       p.title,
		Author:      p.author,
		Copyright:   p.copyright,
		Notes:       p.notes,
		AcrossClues: p.AcrossClues(),
		DownClues:   p.DownClues(),
	}
}

// checkInvariants re-checks what Validate guarantees, so exporters never
// index out of range on a zero or hand-built Puzzle.
func (p *Puzzle) checkInvariants(f Format) error {
	if p == nil || p.width <= 0 || p.height <= 0 {
		return exportErrorf(f, ErrInvariant, "puzzle was not produced by Validate")
	}
	if len(p.cells) != p.width*p.height {
		return exportErrorf(f, ErrInvariant, "grid has %d cells, want %d", len(p.cells), p.width*p.height)
	}
	if len(p.across) != len(p.numbering.Across) || len(p.down) != len(p.numbering.Down) {
		return exportErrorf(f, ErrInvariant, "clue lists do not match grid numbering")
	}
	for _, s := range []string{p.title, p.author, p.copyright, p.notes} {
		if msg := textProblem(s); msg != "" {
			return exportErrorf(f, ErrInvariant, "metadata %s", msg)
		}
	}
	for _, list := range [][]Clue{p.across, p.down} {
		for _, c := range list {
			if msg := textProblem(c.Text); msg != "" {
				return exportErrorf(f, ErrInvariant, "clue #%d %s", c.Number, msg)
			}
		}
	}
	return nil
}
