// Package xword turns a crossword description (grid, clue lists and metadata)
// into the interchange formats read by crossword solving software.
//
// # Contents
//
//   - Clue numbering derived from grid topology (Number, NumberCells)
//   - Collect-all structural validation (Validate, FieldErrors)
//   - Rolling checksum shared by the binary formats (Checksum)
//   - Export to .puz v1.2, .puz v2.0 with rebus sections, and ipuz JSON
//     (Export, Convert)
//   - ipuz import back into a validated puzzle (DecodeIPuz)
//
// # Notes
//
// Every function is a pure transformation over its arguments: the package
// holds no mutable state, and the same Puzzle exported twice to the same
// Format yields identical bytes. No solution is ever recorded; binary exports
// carry a placeholder solution grid.
package xword
