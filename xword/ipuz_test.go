package xword

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPuz_Document(t *testing.T) {
	raw := rawPuzzle("A..", ".#.", "..Z")
	raw.Grid[1] = Open("ON")
	out, err := Export(mustValidate(t, raw), FormatText)
	require.NoError(t, err)
	assert.Equal(t, FormatText, out.Format)

	var doc struct {
		Version    string         `json:"version"`
		Kind       []string       `json:"kind"`
		Title      string         `json:"title"`
		Notes      string         `json:"notes"`
		Dimensions map[string]int `json:"dimensions"`
		Block      string         `json:"block"`
		Puzzle     [][]any        `json:"puzzle"`
		Solution   [][]any        `json:"solution"`
		Clues      map[string][][2]any
	}
	require.NoError(t, json.Unmarshal(out.Data, &doc))

	assert.Equal(t, "http://ipuz.org/v1", doc.Version)
	assert.Equal(t, []string{"http://ipuz.org/crossword#1"}, doc.Kind)
	assert.Equal(t, raw.Title, doc.Title)
	assert.Equal(t, raw.Notes, doc.Notes)
	assert.Equal(t, map[string]int{"width": 3, "height": 3}, doc.Dimensions)
	assert.Equal(t, "#", doc.Block)
	assert.Equal(t, [][]any{
		{map[string]any{"cell": 1.0}, map[string]any{"cell": 0.0}, map[string]any{"cell": 2.0}},
		{map[string]any{"cell": 0.0}, "#", map[string]any{"cell": 0.0}},
		{map[string]any{"cell": 3.0}, map[string]any{"cell": 0.0}, map[string]any{"cell": 0.0}},
	}, doc.Puzzle)
	assert.Equal(t, [][]any{
		{"A", "ON", nil},
		{nil, "#", nil},
		{nil, nil, "Z"},
	}, doc.Solution)
	assert.Equal(t, [][2]any{{1.0, raw.AcrossClues[0].Text}, {3.0, raw.AcrossClues[1].Text}}, doc.Clues["Across"])
	assert.Len(t, doc.Clues["Down"], 2)
}

func TestIPuz_NoHTMLEscaping(t *testing.T) {
	raw := rawPuzzle("..", "..")
	raw.AcrossClues[0].Text = "<b>Bold</b> & more"
	out, err := Export(mustValidate(t, raw), FormatText)
	require.NoError(t, err)
	assert.Contains(t, out.Text(), "<b>Bold</b> & more")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(Clue{Number: 4, Text: "R&D <lab>"}))
	assert.Equal(t, "[4,\"R&D <lab>\"]\n", buf.String())
}

func TestIPuz_RoundTrip(t *testing.T) {
	raw := rawPuzzle("##..", "....", "..##")
	raw.Grid[2] = Open("ON")
	raw.Grid[4] = Open("Ü")

	out, err := Export(mustValidate(t, raw), FormatText)
	require.NoError(t, err)

	p, err := DecodeIPuz(out.Data)
	require.NoError(t, err)
	assert.Equal(t, raw, p.Raw())
}

func TestDecodeIPuz_Errors(t *testing.T) {
	out, err := Export(mustValidate(t, rawPuzzle("...", ".#.", "...")), FormatText)
	require.NoError(t, err)

	edit := func(t *testing.T, change func(doc map[string]any)) []byte {
		t.Helper()
		var doc map[string]any
		require.NoError(t, json.Unmarshal(out.Data, &doc))
		change(doc)
		b, err := json.Marshal(doc)
		require.NoError(t, err)
		return b
	}

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeIPuz([]byte("{"))
		require.Error(t, err)
		_, isField := err.(FieldErrors)
		assert.False(t, isField)
	})
	t.Run("wrong label", func(t *testing.T) {
		b := edit(t, func(doc map[string]any) {
			doc["puzzle"].([]any)[0].([]any)[2] = 7
		})
		_, err := DecodeIPuz(b)
		fe := fieldErrors(t, err)
		assert.Equal(t, "invalid numbering at 0,2: expected #2 but found #7", fe[FieldPuzzle])
	})
	t.Run("labels as objects", func(t *testing.T) {
		b := edit(t, func(doc map[string]any) {
			doc["puzzle"].([]any)[0].([]any)[0] = map[string]any{"cell": 1, "style": map[string]any{"shapebg": "circle"}}
		})
		_, err := DecodeIPuz(b)
		assert.NoError(t, err)
	})
	t.Run("short rows", func(t *testing.T) {
		b := edit(t, func(doc map[string]any) {
			doc["puzzle"] = doc["puzzle"].([]any)[:2]
			doc["solution"].([]any)[1] = []any{nil}
		})
		_, err := DecodeIPuz(b)
		fe := fieldErrors(t, err)
		assert.Equal(t, "grid is height 3, but found 2 rows", fe[FieldPuzzle])
		assert.Equal(t, "grid is width 3, but row 1 is length 1", fe["solution"])
	})
	t.Run("clue mismatch and kind", func(t *testing.T) {
		b := edit(t, func(doc map[string]any) {
			doc["kind"] = []any{"http://ipuz.org/sudoku#1"}
			clues := doc["clues"].(map[string]any)
			clues["Down"] = clues["Down"].([]any)[:1]
		})
		_, err := DecodeIPuz(b)
		fe := fieldErrors(t, err)
		assert.Equal(t, []string{FieldDownClues, "kind"}, fe.Fields())
	})
	t.Run("bad dimensions", func(t *testing.T) {
		b := edit(t, func(doc map[string]any) {
			doc["dimensions"] = map[string]any{"width": 0, "height": 3}
		})
		_, err := DecodeIPuz(b)
		assert.Contains(t, fieldErrors(t, err), "dimensions")
	})
}
