package xword

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ipuzVersion = "http://ipuz.org/v1"
	ipuzKind    = "http://ipuz.org/crossword#1"
	ipuzBlock   = `"#"`
	ipuzEmpty   = `0`

	// maxReportedCells bounds per-cell messages in one FieldErrors entry.
	maxReportedCells = 5
)

// ipuzDocument mirrors the JSON layout. Cells stay raw because ipuz lets a
// cell be a number, a string, null or an object.
type ipuzDocument struct {
	Version    string              `json:"version"`
	Kind       []string            `json:"kind"`
	Title      string              `json:"title"`
	Author     string              `json:"author"`
	Copyright  string              `json:"copyright"`
	Notes      string              `json:"notes"`
	Dimensions ipuzDimensions      `json:"dimensions"`
	Block      json.RawMessage     `json:"block,omitempty"`
	Empty      json.RawMessage     `json:"empty,omitempty"`
	Puzzle     [][]json.RawMessage `json:"puzzle"`
	Solution   [][]json.RawMessage `json:"solution,omitempty"`
	Clues      ipuzClues           `json:"clues"`
}

type ipuzDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ipuzClues struct {
	Across []Clue `json:"Across"`
	Down   []Clue `json:"Down"`
}

func encodeIPuz(p *Puzzle) ([]byte, error) {
	if err := p.checkInvariants(FormatText); err != nil {
		return nil, err
	}

	labels := p.numbering.Labels(p.width, p.height)
	doc := ipuzDocument{
		Version:    ipuzVersion,
		Kind:       []string{ipuzKind},
		Title:      p.title,
		Author:     p.author,
		Copyright:  p.copyright,
		Notes:      p.notes,
		Dimensions: ipuzDimensions{Width: p.width, Height: p.height},
		Block:      json.RawMessage(ipuzBlock),
		Empty:      json.RawMessage(ipuzEmpty),
		Puzzle:     make([][]json.RawMessage, p.height),
		Solution:   make([][]json.RawMessage, p.height),
		Clues: ipuzClues{
			Across: append([]Clue{}, p.across...),
			Down:   append([]Clue{}, p.down...),
		},
	}
	for row := range p.height {
		doc.Puzzle[row] = make([]json.RawMessage, p.width)
		doc.Solution[row] = make([]json.RawMessage, p.width)
		for col := range p.width {
			i := row*p.width + col
			c := p.cells[i]
			switch {
			case c.Black:
				doc.Puzzle[row][col] = json.RawMessage(ipuzBlock)
				doc.Solution[row][col] = json.RawMessage(ipuzBlock)
				continue
			default:
				doc.Puzzle[row][col] = ipuzCell(labels[i])
			}
			if c.Fill == "" {
				doc.Solution[row][col] = json.RawMessage("null")
				continue
			}
			fill, err := marshalString(c.Fill)
			if err != nil {
				return nil, exportErrorf(FormatText, ErrInvariant, "cell (%d,%d): %v", row, col, err)
			}
			doc.Solution[row][col] = fill
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, exportErrorf(FormatText, ErrInvariant, "encode ipuz: %v", err)
	}
	return buf.Bytes(), nil
}

// ipuzCell writes a fillable puzzle cell; label 0 is the empty value.
func ipuzCell(label int) json.RawMessage {
	return json.RawMessage(`{"cell":` + strconv.Itoa(label) + `}`)
}

func marshalString(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeIPuz reads an ipuz crossword and validates it. Malformed JSON is
// returned as a plain error; structural problems as FieldErrors, including a
// "puzzle" entry when the file's cell labels disagree with the numbering
// derived from its grid.
func DecodeIPuz(data []byte) (*Puzzle, error) {
	var doc ipuzDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse ipuz: %w", err)
	}

	errs := FieldErrors{}
	if !isCrosswordKind(doc.Kind) {
		errs.Add("kind", fmt.Sprintf("expected kind %s, found %v", ipuzKind, doc.Kind))
	}
	w, h := doc.Dimensions.Width, doc.Dimensions.Height
	if w <= 0 || h <= 0 {
		errs.Add("dimensions", fmt.Sprintf("dimensions must be positive, found %d×%d", w, h))
		return nil, errs
	}
	shapeOK := checkIPuzRows(FieldPuzzle, doc.Puzzle, w, h, errs)
	if doc.Solution != nil {
		shapeOK = checkIPuzRows("solution", doc.Solution, w, h, errs) && shapeOK
	}
	// Every later step indexes the grids by row and column.
	if !shapeOK {
		return nil, errs
	}

	block := doc.Block
	if len(block) == 0 {
		block = json.RawMessage(ipuzBlock)
	}
	empty := doc.Empty
	if len(empty) == 0 {
		empty = json.RawMessage(ipuzEmpty)
	}

	cells := make([]Cell, 0, w*h)
	labels := make([]int, 0, w*h)
	var bad []string
	for row, cols := range doc.Puzzle {
		for col, raw := range cols {
			label, black, err := ipuzLabel(raw, block, empty)
			if err != nil {
				bad = append(bad, fmt.Sprintf("cell %d,%d: %v", row, col, err))
			}
			c := Cell{Black: black}
			if !black && doc.Solution != nil {
				fill, err := ipuzFill(doc.Solution[row][col], block)
				if err != nil {
					errs.Add("solution", fmt.Sprintf("cell %d,%d: %v", row, col, err))
				}
				c.Fill = fill
			}
			cells = append(cells, c)
			labels = append(labels, label)
		}
	}

	expected := NumberCells(w, h, cells).Labels(w, h)
	for i, want := range expected {
		if !cells[i].Black && labels[i] != want {
			bad = append(bad, fmt.Sprintf("invalid numbering at %d,%d: expected %s but found %s",
				i/w, i%w, labelString(want), labelString(labels[i])))
		}
	}
	if len(bad) > maxReportedCells {
		bad = append(bad[:maxReportedCells], fmt.Sprintf("and %d more", len(bad)-maxReportedCells))
	}
	for _, msg := range bad {
		errs.Add(FieldPuzzle, msg)
	}

	p, err := Validate(RawPuzzle{
		Width:       w,
		Height:      h,
		Grid:        cells,
		Title:       doc.Title,
		Author:      doc.Author,
		Copyright:   doc.Copyright,
		Notes:       doc.Notes,
		AcrossClues: doc.Clues.Across,
		DownClues:   doc.Clues.Down,
	})
	var fe FieldErrors
	if errors.As(err, &fe) {
		errs.Merge(fe)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return p, nil
}

func isCrosswordKind(kinds []string) bool {
	for _, k := range kinds {
		if strings.HasPrefix(k, "http://ipuz.org/crossword") {
			return true
		}
	}
	return false
}

func checkIPuzRows(field string, rows [][]json.RawMessage, w, h int, errs FieldErrors) bool {
	if len(rows) != h {
		errs.Add(field, fmt.Sprintf("grid is height %d, but found %d rows", h, len(rows)))
		return false
	}
	for i, r := range rows {
		if len(r) != w {
			errs.Add(field, fmt.Sprintf("grid is width %d, but row %d is length %d", w, i, len(r)))
			return false
		}
	}
	return true
}

// ipuzLabel interprets a puzzle cell: the block value, the empty value, a
// clue number, or an object carrying one of those under "cell".
func ipuzLabel(raw, block, empty json.RawMessage) (label int, black bool, err error) {
	v, err := ipuzScalar(raw, "cell")
	if err != nil {
		return 0, false, err
	}
	switch {
	case v == nil:
		return 0, true, nil
	case sameScalar(v, block):
		return 0, true, nil
	case sameScalar(v, empty):
		return 0, false, nil
	}
	switch v := v.(type) {
	case float64:
		if v < 1 || v != float64(int(v)) {
			return 0, false, fmt.Errorf("numeric label is out of supported range (found %v)", v)
		}
		return int(v), false, nil
	case string:
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			return 0, false, fmt.Errorf("string labels are unsupported (found %q)", v)
		}
		return n, false, nil
	}
	return 0, false, fmt.Errorf("unsupported label %s", raw)
}

// ipuzFill interprets a solution cell as declared fill; block and null
// declare none.
func ipuzFill(raw, block json.RawMessage) (string, error) {
	v, err := ipuzScalar(raw, "value")
	if err != nil {
		return "", err
	}
	if v == nil || sameScalar(v, block) {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string or block, found %s", raw)
	}
	return s, nil
}

func ipuzScalar(raw json.RawMessage, key string) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		return obj[key], nil
	}
	return v, nil
}

func sameScalar(v any, ref json.RawMessage) bool {
	var r any
	if err := json.Unmarshal(ref, &r); err != nil {
		return false
	}
	switch r.(type) {
	case string, float64, bool:
		return v == r
	}
	return false
}

func labelString(n int) string {
	if n == 0 {
		return "no label"
	}
	return "#" + strconv.Itoa(n)
}
