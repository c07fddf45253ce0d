package main

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/bodul/crossword-export/xword"
)

// GridAnalyzer turns a photo of a crossword into a puzzle skeleton.
type GridAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*xword.RawPuzzle, error)
}

const analyzePrompt = `Analyze this photo of an American-style crossword grid.

Extract its structure as JSON in exactly this shape:
{
  "width": <number of columns>,
  "height": <number of rows>,
  "grid": [<one entry per square, row by row, left to right>],
  "title": "<printed title, or empty>",
  "author": "<printed byline, or empty>",
  "acrossClues": [[<number>, "<clue text>"], ...],
  "downClues": [[<number>, "<clue text>"], ...]
}

Rules:
- A black (blocked) square is null.
- A white square is "" when empty, or the letters written in it when filled.
- Squares are listed row by row, so "grid" has width*height entries.
- Only include clues that are printed next to the grid; otherwise use [].
- Answer ONLY with the JSON, without comments or markdown.`

// AnalyzeImage sends an image to Gemini and returns the extracted puzzle.
// The result has a usable shape but is not validated: clue lists are often
// incomplete and are filled in by the caller.
func (g *GeminiClient) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*xword.RawPuzzle, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: analyzePrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	return parseAnalysis([]byte(text))
}

func parseAnalysis(data []byte) (*xword.RawPuzzle, error) {
	var raw xword.RawPuzzle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse puzzle JSON: %w\nraw response: %s", err, data)
	}

	if raw.Width <= 0 || raw.Height <= 0 || len(raw.Grid) != raw.Width*raw.Height {
		return nil, fmt.Errorf("invalid grid: %dx%d with %d cells", raw.Width, raw.Height, len(raw.Grid))
	}
	if raw.AcrossClues == nil {
		raw.AcrossClues = []xword.Clue{}
	}
	if raw.DownClues == nil {
		raw.DownClues = []xword.Clue{}
	}
	return &raw, nil
}
