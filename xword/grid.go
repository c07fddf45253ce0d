package xword

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Cell is a single square of the grid. A Black cell is blocked; any other
// cell is fillable, and Fill holds its declared content ("" when unknown).
// On the wire a black cell is null and a fillable cell is its fill string.
type Cell struct {
	Black bool
	Fill  string
}

// Open returns a fillable cell with the given declared fill.
func Open(fill string) Cell { return Cell{Fill: fill} }

// Black returns a blocked cell.
func Black() Cell { return Cell{Black: true} }

// IsRebus reports whether the cell declares more than one character of fill.
func (c Cell) IsRebus() bool {
	return !c.Black && utf8.RuneCountInString(c.Fill) > 1
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Black {
		return []byte("null"), nil
	}
	return json.Marshal(c.Fill)
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Black()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("grid cell must be a string or null: %w", err)
	}
	*c = Open(s)
	return nil
}

// Clue is a numbered clue. On the wire it is the pair [number, text]; the
// object form {"number": n, "clue": text} used by ipuz is accepted as well.
type Clue struct {
	Number int
	Text   string
}

func (c Clue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]any{c.Number, c.Text}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *Clue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Number json.RawMessage `json:"number"`
			Clue   string          `json:"clue"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("clue object: %w", err)
		}
		n, err := clueNumber(obj.Number)
		if err != nil {
			return err
		}
		*c = Clue{Number: n, Text: obj.Clue}
		return nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("clue must be a [number, text] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("clue must be a [number, text] pair, found %d elements", len(pair))
	}
	n, err := clueNumber(pair[0])
	if err != nil {
		return err
	}
	var text string
	if err := json.Unmarshal(pair[1], &text); err != nil {
		return fmt.Errorf("clue text: %w", err)
	}
	*c = Clue{Number: n, Text: text}
	return nil
}

// clueNumber accepts a JSON number or a numeric string; ipuz files use both.
func clueNumber(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("clue number is missing")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("clue number must be an integer, found %s", raw)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("clue number must be an integer, found %q", s)
	}
	return n, nil
}

// RawPuzzle is the unvalidated input supplied by callers. Field names match
// the JSON sent by the browser form.
type RawPuzzle struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Grid        []Cell `json:"grid"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Copyright   string `json:"copyright"`
	Notes       string `json:"notes"`
	AcrossClues []Clue `json:"acrossClues"`
	DownClues   []Clue `json:"downClues"`
}
