package xword

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"
)

const (
	headerSize = 0x34
	cibStart   = 0x2C

	solutionBlock   = '.'
	solutionUnknown = 'X'
	playerBlock     = '.'
	playerEmpty     = '-'

	puzzleTypeNormal = 0x0001
	unscrambled      = 0x0000
)

var (
	puzMagic = [12]byte{'A', 'C', 'R', 'O', 'S', 'S', '&', 'D', 'O', 'W', 'N', 0}
	cibMask  = [8]byte{'I', 'C', 'H', 'E', 'A', 'T', 'E', 'D'}
)

// puzHeader is the fixed 52-byte .puz header. Multi-byte fields are little
// endian; the comments give each field's byte offset.
type puzHeader struct {
	Checksum          uint16   // 0x00 whole file
	Magic             [12]byte // 0x02 "ACROSS&DOWN\0"
	CIBChecksum       uint16   // 0x0E over 0x2C..0x34
	MaskedChecksums   [8]byte  // 0x10 "ICHEATED" xor partial sums
	Version           [4]byte  // 0x18 "1.2\0" or "2.0\0"
	Reserved1C        uint16   // 0x1C
	ScrambledChecksum uint16   // 0x1E
	Reserved20        [12]byte // 0x20
	Width             uint8    // 0x2C
	Height            uint8    // 0x2D
	ClueCount         uint16   // 0x2E
	PuzzleType        uint16   // 0x30
	ScrambledTag      uint16   // 0x32
}

func (h *puzHeader) marshal() []byte {
	b := make([]byte, headerSize)
	le := binary.LittleEndian
	le.PutUint16(b[0x00:], h.Checksum)
	copy(b[0x02:0x0E], h.Magic[:])
	le.PutUint16(b[0x0E:], h.CIBChecksum)
	copy(b[0x10:0x18], h.MaskedChecksums[:])
	copy(b[0x18:0x1C], h.Version[:])
	le.PutUint16(b[0x1C:], h.Reserved1C)
	le.PutUint16(b[0x1E:], h.ScrambledChecksum)
	copy(b[0x20:0x2C], h.Reserved20[:])
	b[0x2C] = h.Width
	b[0x2D] = h.Height
	le.PutUint16(b[0x2E:], h.ClueCount)
	le.PutUint16(b[0x30:], h.PuzzleType)
	le.PutUint16(b[0x32:], h.ScrambledTag)
	return b
}

func unmarshalPuzHeader(b []byte) (*puzHeader, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("puz header needs %d bytes, found %d", headerSize, len(b))
	}
	le := binary.LittleEndian
	h := &puzHeader{
		Checksum:          le.Uint16(b[0x00:]),
		CIBChecksum:       le.Uint16(b[0x0E:]),
		Reserved1C:        le.Uint16(b[0x1C:]),
		ScrambledChecksum: le.Uint16(b[0x1E:]),
		Width:             b[0x2C],
		Height:            b[0x2D],
		ClueCount:         le.Uint16(b[0x2E:]),
		PuzzleType:        le.Uint16(b[0x30:]),
		ScrambledTag:      le.Uint16(b[0x32:]),
	}
	copy(h.Magic[:], b[0x02:0x0E])
	copy(h.MaskedChecksums[:], b[0x10:0x18])
	copy(h.Version[:], b[0x18:0x1C])
	copy(h.Reserved20[:], b[0x20:0x2C])
	return h, nil
}

// puzVariant captures what differs between the two .puz flavours.
type puzVariant struct {
	format     Format
	version    [4]byte
	encodeText func(f Format, what, s string) ([]byte, error)
	rebus      bool
}

var (
	legacyPuz   = puzVariant{format: FormatLegacyBinary, version: [4]byte{'1', '.', '2', 0}, encodeText: encodeWindows1252}
	extendedPuz = puzVariant{format: FormatExtendedBinary, version: [4]byte{'2', '.', '0', 0}, encodeText: encodeUTF8, rebus: true}
)

// puzBody is the puzzle converted to the byte strings written after the header.
type puzBody struct {
	width, height uint8
	solution      []byte
	grid          []byte
	title         []byte
	author        []byte
	copyright     []byte
	clues         [][]byte
	notes         []byte
}

func encodePuz(p *Puzzle, v puzVariant) ([]byte, error) {
	if err := p.checkInvariants(v.format); err != nil {
		return nil, err
	}
	if p.width > math.MaxUint8 || p.height > math.MaxUint8 {
		return nil, exportErrorf(v.format, ErrDimensionTooLarge,
			"%d×%d grid, each side must be at most %d", p.width, p.height, math.MaxUint8)
	}
	if n := len(p.across) + len(p.down); n > math.MaxUint16 {
		return nil, exportErrorf(v.format, ErrTooManyClues, "%d clues, at most %d fit", n, math.MaxUint16)
	}
	if !v.rebus {
		for i, c := range p.cells {
			if c.IsRebus() {
				return nil, exportErrorf(v.format, ErrRebusUnsupported,
					"cell (%d,%d) holds %q; use %s", i/p.width, i%p.width, c.Fill, FormatExtendedBinary)
			}
		}
	}

	body, err := newPuzBody(p, v)
	if err != nil {
		return nil, err
	}
	var extensions []byte
	if v.rebus {
		if extensions, err = rebusSections(p, v.format); err != nil {
			return nil, err
		}
	}

	h := newPuzHeader(body, v.version)
	var buf bytes.Buffer
	buf.Write(h.marshal())
	buf.Write(body.solution)
	buf.Write(body.grid)
	for _, s := range [][]byte{body.title, body.author, body.copyright} {
		buf.Write(s)
		buf.WriteByte(0)
	}
	for _, clue := range body.clues {
		buf.Write(clue)
		buf.WriteByte(0)
	}
	buf.Write(body.notes)
	buf.WriteByte(0)
	buf.Write(extensions)
	return buf.Bytes(), nil
}

func newPuzBody(p *Puzzle, v puzVariant) (*puzBody, error) {
	b := &puzBody{
		width:    uint8(p.width),
		height:   uint8(p.height),
		solution: make([]byte, len(p.cells)),
		grid:     make([]byte, len(p.cells)),
	}
	for i, c := range p.cells {
		if c.Black {
			b.solution[i], b.grid[i] = solutionBlock, playerBlock
		} else {
			b.solution[i], b.grid[i] = solutionUnknown, playerEmpty
		}
	}

	var err error
	if b.title, err = v.encodeText(v.format, FieldTitle, p.title); err != nil {
		return nil, err
	}
	if b.author, err = v.encodeText(v.format, FieldAuthor, p.author); err != nil {
		return nil, err
	}
	if b.copyright, err = v.encodeText(v.format, FieldCopyright, p.copyright); err != nil {
		return nil, err
	}
	if b.notes, err = v.encodeText(v.format, FieldNotes, p.notes); err != nil {
		return nil, err
	}
	for _, c := range orderedClues(p.across, p.down) {
		text, err := v.encodeText(v.format, c.label, c.Text)
		if err != nil {
			return nil, err
		}
		b.clues = append(b.clues, text)
	}
	return b, nil
}

type labeledClue struct {
	Clue
	label string
}

// orderedClues interleaves both lists by number. A number present in both
// directions yields its across clue first.
func orderedClues(across, down []Clue) []labeledClue {
	out := make([]labeledClue, 0, len(across)+len(down))
	i, j := 0, 0
	for i < len(across) || j < len(down) {
		if j == len(down) || (i < len(across) && across[i].Number <= down[j].Number) {
			out = append(out, labeledClue{across[i], fmt.Sprintf("clue %dA", across[i].Number)})
			i++
			continue
		}
		out = append(out, labeledClue{down[j], fmt.Sprintf("clue %dD", down[j].Number)})
		j++
	}
	return out
}

func newPuzHeader(b *puzBody, version [4]byte) *puzHeader {
	h := &puzHeader{
		Magic:        puzMagic,
		Version:      version,
		Width:        b.width,
		Height:       b.height,
		ClueCount:    uint16(len(b.clues)),
		PuzzleType:   puzzleTypeNormal,
		ScrambledTag: unscrambled,
	}

	h.CIBChecksum = Checksum(h.marshal()[cibStart:headerSize], 0)
	h.Checksum, h.MaskedChecksums = b.checksums(h.CIBChecksum)
	return h
}

// checksums derives the file checksum and the masked checksums from the
// body and the checksum of the header scalars at 0x2C..0x34.
func (b *puzBody) checksums(cib uint16) (file uint16, masked [8]byte) {
	sol := Checksum(b.solution, 0)
	grid := Checksum(b.grid, 0)
	text := b.textChecksum(0)

	file = b.textChecksum(Checksum(b.grid, Checksum(b.solution, cib)))
	partials := [8]byte{
		byte(cib), byte(sol), byte(grid), byte(text),
		byte(cib >> 8), byte(sol >> 8), byte(grid >> 8), byte(text >> 8),
	}
	for i := range partials {
		masked[i] = cibMask[i] ^ partials[i]
	}
	return file, masked
}

// textChecksum folds the text block: title, author, copyright and notes with
// their NUL when non-empty, clues without it.
func (b *puzBody) textChecksum(seed uint16) uint16 {
	sum := seed
	sum = checksumString(b.title, sum)
	sum = checksumString(b.author, sum)
	sum = checksumString(b.copyright, sum)
	for _, clue := range b.clues {
		sum = Checksum(clue, sum)
	}
	return checksumString(b.notes, sum)
}

// rebusSections builds the GRBS and RTBL extension sections. Each distinct
// fill gets a table key in first-seen order; GRBS stores key+1 per cell.
func rebusSections(p *Puzzle, f Format) ([]byte, error) {
	keys := map[string]int{}
	var table bytes.Buffer
	grbs := make([]byte, len(p.cells))
	for i, c := range p.cells {
		if !c.IsRebus() {
			continue
		}
		key, ok := keys[c.Fill]
		if !ok {
			key = len(keys)
			if key+1 > math.MaxUint8 {
				return nil, exportErrorf(f, ErrRebusUnsupported, "more than %d distinct rebus fills", math.MaxUint8)
			}
			keys[c.Fill] = key
			fmt.Fprintf(&table, "%2d:%s;", key, c.Fill)
		}
		grbs[i] = byte(key + 1)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if table.Len() > math.MaxUint16 {
		return nil, exportErrorf(f, ErrRebusUnsupported, "rebus table is %d bytes, at most %d fit", table.Len(), math.MaxUint16)
	}

	var out []byte
	out = appendSection(out, "GRBS", grbs)
	out = appendSection(out, "RTBL", table.Bytes())
	return out, nil
}

// appendSection writes an extension section: 4-byte title, data length and
// data checksum as little-endian uint16, the data, then a NUL.
func appendSection(out []byte, title string, data []byte) []byte {
	out = append(out, title...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(data)))
	out = binary.LittleEndian.AppendUint16(out, Checksum(data, 0))
	out = append(out, data...)
	return append(out, 0)
}

func encodeWindows1252(f Format, what, s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return nil, exportErrorf(f, ErrUnencodable,
				"%s: %q at byte %d has no Windows-1252 form; use %s", what, r, i, FormatExtendedBinary)
		}
		if b == 0 {
			return nil, exportErrorf(f, ErrInvariant, "%s contains a NUL byte", what)
		}
		out = append(out, b)
	}
	return out, nil
}

func encodeUTF8(f Format, what, s string) ([]byte, error) {
	if msg := textProblem(s); msg != "" {
		return nil, exportErrorf(f, ErrInvariant, "%s %s", what, msg)
	}
	return []byte(s), nil
}
