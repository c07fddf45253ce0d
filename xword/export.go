package xword

import (
	"fmt"
	"strings"
)

// Format selects an interchange format.
type Format string

const (
	// FormatLegacyBinary is .puz version 1.2: Windows-1252 text, one byte
	// per cell, no rebus.
	FormatLegacyBinary Format = "legacy-binary"
	// FormatExtendedBinary is .puz version 2.0: UTF-8 text plus GRBS/RTBL
	// sections for rebus cells.
	FormatExtendedBinary Format = "extended-binary"
	// FormatText is ipuz JSON.
	FormatText Format = "text"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatLegacyBinary, FormatExtendedBinary, FormatText}
}

// ParseFormat maps a format tag, or one of the aliases puz, puz2 and ipuz,
// to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FormatLegacyBinary), "puz":
		return FormatLegacyBinary, nil
	case string(FormatExtendedBinary), "puz2":
		return FormatExtendedBinary, nil
	case string(FormatText), "ipuz":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w %q (want one of %s, %s, %s)",
		ErrUnknownFormat, s, FormatLegacyBinary, FormatExtendedBinary, FormatText)
}

// Extension returns the file extension, with dot, used for the format.
func (f Format) Extension() string {
	if f == FormatText {
		return ".ipuz"
	}
	return ".puz"
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatText {
		return "application/json"
	}
	return "application/x-crossword"
}

// Output is an encoded puzzle tagged with the format that produced it.
type Output struct {
	Format Format
	Data   []byte
}

// Text returns the document of a text export.
func (o Output) Text() string { return string(o.Data) }

// Export encodes p in format f. Failures are *ExportError values.
func Export(p *Puzzle, f Format) (Output, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatLegacyBinary:
		data, err = encodePuz(p, legacyPuz)
	case FormatExtendedBinary:
		data, err = encodePuz(p, extendedPuz)
	case FormatText:
		data, err = encodeIPuz(p)
	default:
		return Output{}, &ExportError{Format: f, Kind: ErrUnknownFormat}
	}
	if err != nil {
		return Output{}, err
	}
	return Output{Format: f, Data: data}, nil
}

// Convert validates raw and exports it. The error is either FieldErrors
// (fix the input) or *ExportError (pick another format); use errors.As to
// tell them apart.
func Convert(raw RawPuzzle, f Format) (Output, error) {
	p, err := Validate(raw)
	if err != nil {
		return Output{}, err
	}
	return Export(p, f)
}
