package xword

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// ErrCorruptPuz is wrapped by every VerifyPuz failure.
var ErrCorruptPuz = errors.New("corrupt puz file")

// PuzInfo describes a .puz file whose checksums all matched.
type PuzInfo struct {
	Version   string   `json:"version"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Copyright string   `json:"copyright"`
	Notes     string   `json:"notes"`
	Clues     []string `json:"clues"`
	Sections  []string `json:"sections,omitempty"`
	Scrambled bool     `json:"scrambled"`
}

// VerifyPuz parses a .puz file and recomputes every checksum it carries: the
// CIB checksum, the file checksum, the eight masked bytes and the checksum of
// each extension section.
func VerifyPuz(data []byte) (*PuzInfo, error) {
	h, err := unmarshalPuzHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPuz, err)
	}
	if h.Magic != puzMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptPuz, h.Magic[:])
	}

	r := &puzReader{data: data, off: headerSize}
	n := int(h.Width) * int(h.Height)
	b := &puzBody{width: h.Width, height: h.Height}
	if b.solution, err = r.next(n); err != nil {
		return nil, err
	}
	if b.grid, err = r.next(n); err != nil {
		return nil, err
	}
	for _, dst := range []*[]byte{&b.title, &b.author, &b.copyright} {
		if *dst, err = r.cstring(); err != nil {
			return nil, err
		}
	}
	for range int(h.ClueCount) {
		clue, err := r.cstring()
		if err != nil {
			return nil, err
		}
		b.clues = append(b.clues, clue)
	}
	if b.notes, err = r.cstring(); err != nil {
		return nil, err
	}

	// The header scalars are checksummed as stored, whatever their values.
	cib := Checksum(data[cibStart:headerSize], 0)
	file, masked := b.checksums(cib)
	switch {
	case h.CIBChecksum != cib:
		return nil, fmt.Errorf("%w: CIB checksum %#04x, computed %#04x", ErrCorruptPuz, h.CIBChecksum, cib)
	case h.Checksum != file:
		return nil, fmt.Errorf("%w: file checksum %#04x, computed %#04x", ErrCorruptPuz, h.Checksum, file)
	case h.MaskedChecksums != masked:
		return nil, fmt.Errorf("%w: masked checksums % x, computed % x", ErrCorruptPuz, h.MaskedChecksums[:], masked[:])
	}

	info := &PuzInfo{
		Version:   string(bytes.TrimRight(h.Version[:], "\x00")),
		Width:     int(h.Width),
		Height:    int(h.Height),
		Scrambled: h.ScrambledTag != unscrambled,
	}
	for r.off < len(data) {
		name, err := r.section()
		if err != nil {
			return nil, err
		}
		info.Sections = append(info.Sections, name)
	}

	decode := func(s []byte) string { return string(s) }
	if info.Version == "1.2" {
		dec := charmap.Windows1252.NewDecoder()
		decode = func(s []byte) string {
			out, err := dec.Bytes(s)
			if err != nil {
				return string(s)
			}
			return string(out)
		}
	}
	info.Title = decode(b.title)
	info.Author = decode(b.author)
	info.Copyright = decode(b.copyright)
	info.Notes = decode(b.notes)
	for _, c := range b.clues {
		info.Clues = append(info.Clues, decode(c))
	}
	return info, nil
}

type puzReader struct {
	data []byte
	off  int
}

func (r *puzReader) next(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated at byte %d, need %d more", ErrCorruptPuz, r.off, n)
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *puzReader) cstring() ([]byte, error) {
	end := bytes.IndexByte(r.data[r.off:], 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated string at byte %d", ErrCorruptPuz, r.off)
	}
	out := r.data[r.off : r.off+end]
	r.off += end + 1
	return out, nil
}

func (r *puzReader) section() (string, error) {
	head, err := r.next(8)
	if err != nil {
		return "", err
	}
	name := string(head[:4])
	size := int(binary.LittleEndian.Uint16(head[4:]))
	sum := binary.LittleEndian.Uint16(head[6:])
	data, err := r.next(size + 1)
	if err != nil {
		return "", err
	}
	if data[size] != 0 {
		return "", fmt.Errorf("%w: section %s is not NUL-terminated", ErrCorruptPuz, name)
	}
	if got := Checksum(data[:size], 0); got != sum {
		return "", fmt.Errorf("%w: section %s checksum %#04x, computed %#04x", ErrCorruptPuz, name, sum, got)
	}
	return name, nil
}
