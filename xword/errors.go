package xword

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Field identifiers used as FieldErrors keys. They match the RawPuzzle JSON
// names so the form can attach each message to its input.
const (
	FieldWidth       = "width"
	FieldHeight      = "height"
	FieldGrid        = "grid"
	FieldPuzzle      = "puzzle"
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldCopyright   = "copyright"
	FieldNotes       = "notes"
	FieldAcrossClues = "acrossClues"
	FieldDownClues   = "downClues"
)

// FieldErrors maps a field identifier to a human readable message. It is
// returned by Validate when at least one check failed and always holds every
// violation found, not just the first.
type FieldErrors map[string]string

// Add records msg for field. A second message for the same field is appended
// to the first.
func (fe FieldErrors) Add(field, msg string) {
	if prev, ok := fe[field]; ok {
		fe[field] = prev + "; " + msg
		return
	}
	fe[field] = msg
}

// Merge copies every entry of other into fe.
func (fe FieldErrors) Merge(other FieldErrors) {
	for _, field := range other.Fields() {
		fe.Add(field, other[field])
	}
}

// Fields returns the failing fields in sorted order.
func (fe FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe.Fields() {
		parts = append(parts, f+": "+fe[f])
	}
	return "invalid puzzle: " + strings.Join(parts, "; ")
}

// Export failure kinds. An *ExportError wraps exactly one of them.
var (
	ErrUnknownFormat     = errors.New("unknown format")
	ErrDimensionTooLarge = errors.New("dimension exceeds single-byte range")
	ErrTooManyClues      = errors.New("too many clues")
	ErrRebusUnsupported  = errors.New("rebus fill is not supported")
	ErrUnencodable       = errors.New("text cannot be encoded")
	ErrInvariant         = errors.New("puzzle invariant violated")
)

// ExportError reports that a valid puzzle cannot be written in the chosen
// format. It is not attributable to a single input field.
type ExportError struct {
	Format Format
	Kind   error
	Detail string
}

func (e *ExportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("export %s: %v", e.Format, e.Kind)
	}
	return fmt.Sprintf("export %s: %v: %s", e.Format, e.Kind, e.Detail)
}

func (e *ExportError) Unwrap() error { return e.Kind }

func exportErrorf(f Format, kind error, format string, args ...any) *ExportError {
	return &ExportError{Format: f, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
